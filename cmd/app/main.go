package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/storybundle/internal"
	pkgconfig "github.com/starford/storybundle/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("base-url") {
		cfg.Content.BaseURL = strings.TrimRight(cmd.String("base-url"), "/")
	}
	if cmd.Bool("force") {
		cfg.IIIF.Force = true
	}
	if cmd.Bool("skip-validation") {
		cfg.IIIF.SkipValidation = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	req := internal.BuildRequest{
		Version:    cmd.String("version"),
		BundleOnly: cmd.Bool("bundle-only"),
		IIIFOnly:   cmd.Bool("iiif-only"),
	}
	if err := internal.Build(ctx, req, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func listVersions(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	vs, err := internal.Versions(ctx, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("versions failed: %w", err)
	}
	for _, v := range vs {
		fmt.Println(v)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, cmd.String("version"), internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.MCP(ctx, internal.WithConfig(cfg))
}

func main() {
	versionFlag := &cli.StringFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "Content version to build (e.g. 1.0)",
	}

	cmd := &cli.Command{
		Name:  "storybundle",
		Usage: "Assemble multilingual story bundles and IIIF assets from CSV and Markdown sources",
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
				Name:   "build",
				Usage:  "Generate IIIF tiles and manifests, then the bundles of one version",
				Action: build,
				Flags: []cli.Flag{
					versionFlag,
					&cli.BoolFlag{Name: "bundle-only", Usage: "Skip IIIF generation"},
					&cli.BoolFlag{Name: "iiif-only", Usage: "Only generate IIIF tiles and manifests"},
					&cli.StringFlag{Name: "base-url", Usage: "Public base URL for IIIF ids (overrides content.base_url)"},
					&cli.BoolFlag{Name: "skip-validation", Usage: "Do not validate generated manifests"},
					&cli.BoolFlag{Name: "force", Usage: "Regenerate tiles that already exist"},
				},
			},
			{
				Name:   "versions",
				Usage:  "Rewrite the version index from the bundles on disk",
				Action: listVersions,
			},
			{
				Name:   "serve",
				Usage:  "Serve the preview API and rebuild a version on change",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "version",
						Aliases:  []string{"v"},
						Usage:    "Content version to watch",
						Required: true,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the bundle tools over MCP stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
