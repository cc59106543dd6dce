package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "jds_", cfg.TablePrefix)
	assert.Equal(t, 500, cfg.LoadChunkSize)
	assert.True(t, cfg.AutoMigrate)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
dialect: postgres
dbUrl: postgres://localhost/jds
batchSize: 100
logFormat: json
alternates:
  reports: postgres://localhost/reports
`), 0o644))

	t.Setenv("JDS_PORT", "7070")
	t.Setenv("JDS_SAVE_PARALLELISM", "4")
	t.Setenv("JDS_AUTO_MIGRATE", "no")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 4, cfg.SaveParallelism)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"reports"}, cfg.AlternateNames())
}

func TestAlternatesFromEnv(t *testing.T) {
	t.Setenv("JDS_ALTERNATES", "b=file:b.db, a=file:a.db")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "file:a.db", "b": "file:b.db"}, cfg.Alternates)
	assert.Equal(t, []string{"a", "b"}, cfg.AlternateNames())

	t.Setenv("JDS_ALTERNATES", "broken")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := def()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.Validate())

	cfg = def()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = def()
	cfg.DBURL = " "
	assert.Error(t, cfg.Validate())
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
