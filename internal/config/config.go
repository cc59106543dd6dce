package config

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Dialect     string `yaml:"dialect"`
	DBURL       string `yaml:"dbUrl"`
	TablePrefix string `yaml:"tablePrefix"`
	DSLDir      string `yaml:"dslDir"`
	EnumsDir    string `yaml:"enumsDir"`
	// SnapshotPath is where the field registry is persisted; empty disables it.
	SnapshotPath string `yaml:"snapshotPath"`

	BatchSize       int  `yaml:"batchSize"`
	LoadChunkSize   int  `yaml:"loadChunkSize"`
	SaveParallelism int  `yaml:"saveParallelism"`
	AutoMigrate     bool `yaml:"autoMigrate"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // text | json

	// Alternates maps a report target name to a connection URL of the
	// same dialect.
	Alternates map[string]string `yaml:"alternates"`
}

func def() Config {
	return Config{
		Port:          "8080",
		Dialect:       "sqlite",
		DBURL:         "jds.db",
		TablePrefix:   "jds_",
		DSLDir:        "dsl",
		EnumsDir:      "reference/enums",
		SnapshotPath:  "",
		LoadChunkSize: 500,
		AutoMigrate:   true,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func loadYAML(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.WithField("var", k).Warn("ignoring non-numeric value")
	}
	return fallback
}

// parseAlternates reads "name=url,name2=url2".
func parseAlternates(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("bad alternate %q, want name=url", pair)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}
	return out, nil
}

// Load applies defaults, then the YAML file at path when it exists, then
// JDS_* environment variables.
func Load(path string) (Config, error) {
	cfg := def()
	if path != "" {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			if err := loadYAML(path, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	cfg.Port = getenv("JDS_PORT", cfg.Port)
	cfg.Dialect = getenv("JDS_DIALECT", cfg.Dialect)
	cfg.DBURL = getenv("JDS_DB_URL", cfg.DBURL)
	cfg.TablePrefix = getenv("JDS_TABLE_PREFIX", cfg.TablePrefix)
	cfg.DSLDir = getenv("JDS_DSL_DIR", cfg.DSLDir)
	cfg.EnumsDir = getenv("JDS_ENUMS_DIR", cfg.EnumsDir)
	cfg.SnapshotPath = getenv("JDS_SNAPSHOT_PATH", cfg.SnapshotPath)
	cfg.BatchSize = getenvInt("JDS_BATCH_SIZE", cfg.BatchSize)
	cfg.LoadChunkSize = getenvInt("JDS_LOAD_CHUNK_SIZE", cfg.LoadChunkSize)
	cfg.SaveParallelism = getenvInt("JDS_SAVE_PARALLELISM", cfg.SaveParallelism)
	cfg.AutoMigrate = getenvBool("JDS_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = getenv("JDS_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("JDS_LOG_FORMAT", cfg.LogFormat)
	if v := getenv("JDS_ALTERNATES", ""); v != "" {
		alt, err := parseAlternates(v)
		if err != nil {
			return cfg, err
		}
		cfg.Alternates = alt
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DBURL) == "" {
		return errors.New("config: dbUrl is required")
	}
	if c.LoadChunkSize < 0 || c.BatchSize < 0 || c.SaveParallelism < 0 {
		return errors.New("config: sizes must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return errors.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// AlternateNames returns the configured alternate names in order.
func (c Config) AlternateNames() []string {
	out := make([]string, 0, len(c.Alternates))
	for name := range c.Alternates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ConfigureLogging applies the level and format to the standard logger.
func (c Config) ConfigureLogging() {
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
