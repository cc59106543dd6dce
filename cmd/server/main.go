package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"jds/internal/api"
	"jds/internal/config"
	"jds/internal/embedded"
	"jds/internal/engine"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "server",
		Usage: "Entity store server and maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "jds.yaml", Usage: "YAML config file", Sources: cli.EnvVars("JDS_CONFIG")},
			&cli.StringFlag{Name: "dialect", Usage: "postgres | mysql | sqlite"},
			&cli.StringFlag{Name: "db-url", Usage: "store connection URL"},
			&cli.StringFlag{Name: "log-level", Usage: "logrus level"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			syncCommand(),
			exportCommand(),
			snapshotCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig layers the root flags over the file and environment.
func loadConfig(c *cli.Command) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("dialect") {
		cfg.Dialect = c.String("dialect")
	}
	if c.IsSet("db-url") {
		cfg.DBURL = c.String("db-url")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := api.NewService(a.engine, api.Options{
				DSLDir:       cfg.DSLDir,
				EnumsDir:     cfg.EnumsDir,
				Declarations: a.decls,
				Catalog:      a.catalog,
				Logger:       log.WithField("component", "api"),
			})
			return api.RunServer(ctx, ":"+cfg.Port, svc)
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Create or extend the store, report and dictionary tables",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			a, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			log.WithFields(log.Fields{
				"dialect": cfg.Dialect,
				"types":   len(a.types.All()),
			}).Info("sync complete")
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write stored entities of one type as embedded JSON",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "entity", Required: true, Usage: "entity type id, derived types included"},
			&cli.BoolFlag{Name: "all-revisions", Usage: "export every edit version"},
			&cli.BoolFlag{Name: "nested", Usage: "also export nested entities as roots"},
			&cli.BoolFlag{Name: "pretty", Usage: "indent the output"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			a, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			id := c.Int64("entity")
			if _, ok := a.types.Lookup(id); !ok {
				return errors.Errorf("entity %d is not registered", id)
			}
			found, err := a.engine.Load(ctx, engine.Filter{
				Types:         []int64{id},
				LatestOnly:    !c.Bool("all-revisions"),
				IncludeNested: c.Bool("nested"),
			})
			if err != nil {
				return err
			}
			out := make([]embedded.Object, 0, len(found))
			for _, p := range found {
				out = append(out, p.Base().Export())
			}
			enc := json.NewEncoder(c.Root().Writer)
			if c.Bool("pretty") {
				enc.SetIndent("", "  ")
			}
			return errors.Wrap(enc.Encode(out), "encode export")
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Write the field registry snapshot without touching the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "target file, - for stdout; defaults to snapshotPath"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				out = cfg.SnapshotPath
			}
			if out == "" {
				return errors.New("no --out given and snapshotPath is not configured")
			}
			types, _, _, err := loadTypes(cfg)
			if err != nil {
				return err
			}
			if err := writeSnapshot(types.Fields(), out, c.Root().Writer); err != nil {
				return err
			}
			if out != "-" {
				log.WithFields(log.Fields{"path": out, "fields": len(types.Fields().AllFields())}).Info("snapshot written")
			}
			return nil
		},
	}
}
