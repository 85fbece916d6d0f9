package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/asaidimu/go-funnel/config"
	"github.com/asaidimu/go-funnel/core/schema"
)

// globals are the flags shared by every command.
type globals struct {
	configFile string
	logLevel   string
	schemas    []string
}

// load reads the config file, if any, and applies flag overrides.
func (g *globals) load() (*config.Config, *zap.Logger, error) {
	cfg := config.Default()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return nil, nil, err
		}
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	cfg.Schemas = append(cfg.Schemas, g.schemas...)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cfg.Logging.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (g *globals) registry(cfg *config.Config, logger *zap.Logger) (*schema.Registry, error) {
	r := schema.NewRegistry(logger)
	if err := schema.LoadInto(r, cfg.Schemas...); err != nil {
		return nil, err
	}
	logger.Info("Loaded event schemas", zap.Strings("schemas", r.Names()))
	return r, nil
}

func main() {
	app := kingpin.New("funnel", "Compiles funnel groups and filters into query engine requests.")
	app.HelpFlag.Short('h')

	g := &globals{}
	app.Flag("config", "Path to the YAML configuration file.").Short('c').Envar("FUNNEL_CONFIG").StringVar(&g.configFile)
	app.Flag("log-level", "Overrides logging.level.").StringVar(&g.logLevel)
	app.Flag("schema", "Schema file or directory to load, in addition to the configured ones.").StringsVar(&g.schemas)

	addServeCommand(app, g)
	addCompileCommand(app, g)
	addPreviewCommand(app, g)
	addFilterCommand(app, g)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, "funnel:", err)
	os.Exit(1)
}
