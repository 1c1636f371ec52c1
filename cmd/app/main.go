package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/launchgrid/internal"
	pkgconfig "github.com/starford/launchgrid/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func scan(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Scan(ctx, os.Stdout, append(opts, internal.WithLogOutput(os.Stderr))...)
}

func export(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Export(ctx, cmd.String("out"), os.Stdout, append(opts, internal.WithLogOutput(os.Stderr))...)
}

func importLayout(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("import: expected exactly one FILE argument")
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Import(ctx, cmd.Args().First(), opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "launchgrid",
		Usage:  "Paged application launcher grid with folders, live catalog updates and JSON import/export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the SSE stream and the file watcher",
				Action: serve,
			},
			{
				Name:   "scan",
				Usage:  "Print the applications found under the configured roots",
				Action: scan,
			},
			{
				Name:  "export",
				Usage: "Write the saved layout as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when omitted)",
					},
				},
				Action: export,
			},
			{
				Name:      "import",
				Usage:     "Replace the saved layout with a JSON export",
				ArgsUsage: "FILE",
				Action:    importLayout,
			},
			{
				Name:   "mcp",
				Usage:  "Serve launcher tools over MCP on stdin/stdout",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
