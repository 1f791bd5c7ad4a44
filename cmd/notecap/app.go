package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/notecap"
	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/generator"
	"github.com/aretw0/notecap/pkg/render"
)

// systemDir holds bus spool and window files next to the store.
const systemDir = ".notecap"

// storeRoot resolves the store directory: the configured path, else the
// nearest directory carrying a notecap marker, else the working directory.
func storeRoot() string {
	if cfg.Store.Path != "" && cfg.Store.Path != "." {
		return cfg.Store.Path
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("Failed to get CWD", err)
	}
	if root, err := notecap.FindRoot(cwd); err == nil {
		return root
	}
	return cwd
}

func spoolDir(root string) string {
	if cfg.Bus.SpoolDir != "" {
		return cfg.Bus.SpoolDir
	}
	return filepath.Join(root, systemDir, "bus")
}

func windowsDir(root string) string {
	return filepath.Join(root, systemDir, "windows")
}

// cliLabel is the bus label of a one-shot command.
func cliLabel() string {
	return fmt.Sprintf("cli-%d", os.Getpid())
}

func buildGenerator() core.Generator {
	md := generator.NewMarkdown()
	if cfg.Generator.URL == "" {
		return md
	}
	return generator.Chain{
		generator.NewHTTP(cfg.Generator.URL, cfg.Generator.Token, cfg.Generator.Timeout),
		md,
	}
}

func appOptions(root, label string) []notecap.Option {
	opts := []notecap.Option{
		notecap.WithLogger(slog.Default()),
		notecap.WithAdapter(cfg.Store.Adapter),
		notecap.WithFile(cfg.Store.File),
		notecap.WithSystemDir(systemDir),
		notecap.WithReadOnly(cfg.Store.ReadOnly),
		notecap.WithLockTimeout(cfg.Store.LockTimeout),
		notecap.WithLabel(label),
		notecap.WithGenerator(buildGenerator()),
		notecap.WithGeneratorTimeout(cfg.Generator.Timeout),
		notecap.WithRenderer(render.New(cfg.Render.Style, cfg.Render.Width)),
		notecap.WithListPolicy(core.AllNotes),
	}
	if cfg.Bus.Transport == "spool" {
		opts = append(opts,
			notecap.WithSpool(spoolDir(root)),
			notecap.WithSpoolTTL(cfg.Bus.TTL),
		)
	}
	return opts
}

// openApp opens and starts a window labelled label. Options in extra win
// over the configured ones.
func openApp(ctx context.Context, label string, extra ...notecap.Option) (*notecap.App, string) {
	root := storeRoot()
	opts := append(appOptions(root, label), extra...)
	app, err := notecap.Open(ctx, root, opts...)
	if err != nil {
		fatal("Failed to open notes", err)
	}
	return app, root
}
