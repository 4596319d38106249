package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/importcost"
	"github.com/standardbeagle/importcost/internal/config"
	"github.com/standardbeagle/importcost/internal/mcpserver"
	"github.com/standardbeagle/importcost/internal/types"
	"github.com/standardbeagle/importcost/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "importcost",
		Usage:   "Report the bundled and gzipped size each import in a file would add",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Project root to look for .importcost.kdl in",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "mcp",
				Usage: "Run an MCP server over stdio instead of the default usage screen",
			},
		},
		Commands: []*cli.Command{
			costCommand(),
			serveCommand(),
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("mcp") {
				return cli.ShowAppHelp(c)
			}
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return mcpserver.New(cfg).Start(ctx)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "importcost:", err)
		os.Exit(1)
	}
}

func loadConfigWithOverrides(c *cli.Context) (config.Config, error) {
	root := c.String("config")
	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config from %s: %w", root, err)
	}

	if c.IsSet("concurrent") {
		cfg.Concurrent = c.Bool("concurrent")
	}
	if c.IsSet("max-call-time") {
		cfg.MaxCallTime = c.Int64("max-call-time")
	}
	if c.IsSet("cache-dir") {
		cfg.CacheDir = c.String("cache-dir")
	}
	if externals := c.StringSlice("external"); len(externals) > 0 {
		cfg.Externals = append(cfg.Externals, externals...)
	}

	return cfg, nil
}

func costCommand() *cli.Command {
	return &cli.Command{
		Name:      "cost",
		Usage:     "Compute import costs for a single file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "concurrent", Usage: "Size imports concurrently"},
			&cli.Int64Flag{Name: "max-call-time", Usage: "Deadline per call, in milliseconds (0 disables)"},
			&cli.StringFlag{Name: "cache-dir", Usage: "Override the on-disk size cache directory"},
			&cli.StringSliceFlag{Name: "external", Usage: "Treat a package as externalized and free to size"},
			&cli.StringFlag{Name: "language", Usage: "Force a dialect instead of inferring it from the file extension"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one file argument", 2)
			}
			fileName := c.Args().Get(0)

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			source, err := os.ReadFile(fileName)
			if err != nil {
				return fmt.Errorf("reading %s: %w", fileName, err)
			}

			lang := types.DetectLanguage(fileName)
			if l := c.String("language"); l != "" {
				lang = types.ParseLanguage(l)
			}

			if cfg.CacheDir != "" {
				if err := importcost.UseCacheDir(cfg.CacheDir); err != nil {
					return fmt.Errorf("opening cache dir %s: %w", cfg.CacheDir, err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			em := importcost.Run(ctx, fileName, source, lang, types.Config{
				Concurrent:  cfg.Concurrent,
				MaxCallTime: cfg.MaxCallTime,
				Externals:   cfg.Externals,
			})
			defer em.Cleanup()

			for event := range em.Events() {
				switch event.Type {
				case importcost.EventDone:
					return printEntries(event.Entries)
				case importcost.EventError:
					return fmt.Errorf("%s: %w", fileName, event.Err)
				}
			}
			return fmt.Errorf("%s: no terminal event received", fileName)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run an MCP server over stdio exposing the import_cost tool",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			srv := mcpserver.New(cfg)
			return srv.Start(ctx)
		},
	}
}

func printEntries(entries []types.PackageEntry) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
