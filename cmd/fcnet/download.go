package main

import (
	"context"
	"fmt"
	"io"

	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/dataset"
)

func runDownload(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	fs := newFlagSet("download", stderr)
	fs.StringVar(&cfg.Data.Dir, "data", cfg.Data.Dir, "destination directory")
	fs.StringVar(&cfg.Data.Kind, "kind", cfg.Data.Kind, "dataset: mnist or fashion")
	baseURL := fs.String("url", "", "mirror to download from (default depends on -kind)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kind, err := dataset.ParseKind(cfg.Data.Kind)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	err = dataset.Download(ctx, cfg.Data.Dir, kind, dataset.DownloadOptions{
		BaseURL:  *baseURL,
		Progress: stderr,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s ready in %s\n", kind, cfg.Data.Dir)
	return nil
}

func runConfig(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("config", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return config.Default().Write(stdout)
}
