package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/mcpserver"
)

// setup applies opts and returns the config and a logger for a one-shot command.
func setup(opts []Option) (*application, *slog.Logger, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	logger := newLogger(app.config, app.logOutput)
	slog.SetDefault(logger)
	return app, logger, nil
}

// Scan prints every application found under the configured roots as
// tab-separated name and path lines.
func Scan(ctx context.Context, out io.Writer, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	scanner := catalog.NewScanner(cfg.Catalog.BundleSuffix, logger)
	apps, err := scanner.Scan(ctx, cfg.Catalog.ExpandedRoots())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	for _, a := range apps {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", a.Name, a.Path); err != nil {
			return err
		}
	}
	return nil
}

// Export writes the saved layout as JSON to path, or to out when path is
// empty or "-".
func Export(ctx context.Context, path string, out io.Writer, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	rt := open(ctx, app.config, logger, nil)
	defer rt.close()

	doc, err := rt.svc.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	logger.Info("layout exported", slog.String("path", path), slog.Int("items", doc.TotalItems))
	return nil
}

// Import replaces the saved layout with the JSON document at path.
func Import(ctx context.Context, path string, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("import: read %s: %w", path, err)
	}

	rt := open(ctx, app.config, logger, nil)
	defer rt.close()

	v, err := rt.svc.Import(ctx, data, "")
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := rt.svc.Flush(ctx); err != nil {
		return fmt.Errorf("import: save: %w", err)
	}
	logger.Info("layout imported", slog.String("path", path), slog.String("result", v.Message))
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt := open(ctx, app.config, logger, nil)
	defer rt.close()

	return mcpserver.New(rt.svc, rt.backupProvider()).ServeStdio()
}
