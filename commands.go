package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/asaidimu/go-funnel/api"
	"github.com/asaidimu/go-funnel/core/funnel"
	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/store"
	"github.com/asaidimu/go-funnel/render"
	"github.com/asaidimu/go-funnel/sqlite"
)

// serveCommand runs the HTTP API over a SQLite store.
type serveCommand struct {
	g      *globals
	listen string
}

func (cmd *serveCommand) run(_ *kingpin.ParseContext) error {
	cfg, logger, err := cmd.g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cmd.listen != "" {
		cfg.Server.Listen = cmd.listen
	}

	registry, err := cmd.g.registry(cfg, logger)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	options := sqlite.DefaultInteractorOptions()
	options.TablePrefix = cfg.Database.TablePrefix
	p, err := persistence.NewPersistence(sqlite.NewSQLiteInteractor(db, logger, options, nil), logger)
	if err != nil {
		return fmt.Errorf("initializing persistence: %w", err)
	}
	st, err := store.New(p, logger)
	if err != nil {
		return err
	}

	opts := api.Options{
		Registry:     registry,
		Store:        st,
		Persistence:  p,
		QueryOptions: cfg.QueryOptions(),
	}
	if cfg.Templates != "" {
		renderer := render.NewTemplateRenderer(logger)
		if _, err := renderer.LoadDir(cfg.Templates); err != nil {
			return err
		}
		opts.Renderer = renderer
	}

	return api.NewServer(opts, logger).Start(cfg.Server.Listen)
}

func addServeCommand(app *kingpin.Application, g *globals) {
	cmd := &serveCommand{g: g}
	serve := app.Command("serve", "Serve the HTTP API.").Default().Action(cmd.run)
	serve.Flag("listen", "Overrides server.listen.").StringVar(&cmd.listen)
}

// compileCommand assembles a group request file and prints the spec.
type compileCommand struct {
	g       *globals
	file    string
	preview bool
}

func (cmd *compileCommand) run(_ *kingpin.ParseContext) error {
	cfg, logger, err := cmd.g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := cmd.g.registry(cfg, logger)
	if err != nil {
		return err
	}

	var req funnel.GroupRequest
	if err := readJSON(cmd.file, &req); err != nil {
		return err
	}

	a := funnel.NewAssembler(registry, logger)
	if cmd.preview {
		preview, err := a.Preview(context.Background(), &req)
		if err != nil {
			return err
		}
		return printJSON(preview)
	}

	spec, err := a.Assemble(context.Background(), &req)
	if err != nil {
		return err
	}
	queries := make(map[string]any, len(spec.Pipelines))
	for i := range spec.Pipelines {
		queries[spec.Pipelines[i].Name] = spec.Pipelines[i].Query(cfg.QueryOptions()...)
	}
	return printJSON(map[string]any{"group": spec, "queries": queries})
}

func addCompileCommand(app *kingpin.Application, g *globals) {
	cmd := &compileCommand{g: g}
	compile := app.Command("compile", "Compile a funnel group request and print the group spec.").Action(cmd.run)
	compile.Arg("file", "Group request JSON file.").Required().ExistingFileVar(&cmd.file)
}

func addPreviewCommand(app *kingpin.Application, g *globals) {
	cmd := &compileCommand{g: g, preview: true}
	preview := app.Command("preview", "Print the paths of a funnel group request.").Action(cmd.run)
	preview.Arg("file", "Group request JSON file.").Required().ExistingFileVar(&cmd.file)
}

// filterCommand lowers a filter file and prints the engine request.
type filterCommand struct {
	g      *globals
	file   string
	schema string
}

func (cmd *filterCommand) run(_ *kingpin.ParseContext) error {
	cfg, logger, err := cmd.g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := cmd.g.registry(cfg, logger)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(cmd.file)
	if err != nil {
		return fmt.Errorf("reading filter: %w", err)
	}

	_, query, err := funnel.NewAssembler(registry, logger).CompileFilter(context.Background(), cmd.schema, raw)
	if err != nil {
		return err
	}
	spec := funnel.PipelineSpec{QueryFilter: query}
	logger.Debug("Compiled filter", zap.String("schema", cmd.schema))
	return printJSON(spec.Query(cfg.QueryOptions()...))
}

func addFilterCommand(app *kingpin.Application, g *globals) {
	cmd := &filterCommand{g: g}
	f := app.Command("filter", "Compile a filter document into a query engine request.").Action(cmd.run)
	f.Flag("event-schema", "Schema the filter's fields belong to.").Required().StringVar(&cmd.schema)
	f.Arg("file", "Filter JSON file.").Required().ExistingFileVar(&cmd.file)
}

func readJSON(path string, v any) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
