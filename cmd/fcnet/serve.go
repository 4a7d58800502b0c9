package main

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/server"
)

func runServe(ctx context.Context, args []string, _, stderr io.Writer) error {
	cfg := config.Default()
	fs := newFlagSet("serve", stderr)
	model := fs.String("model", cfg.Output, "checkpoint to serve")
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	origins := fs.String("origins", strings.Join(cfg.Server.AllowedOrigins, ","), "comma separated CORS origins")
	maxBatch := fs.Int("max-batch", cfg.Server.MaxBatch, "maximum rows per request")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ckpt, err := checkpoint.Load(*model)
	if err != nil {
		return err
	}
	opts := serveOptions(ckpt, logger, *origins, *maxBatch)
	s, err := server.New(ckpt, opts)
	if err != nil {
		return err
	}
	logger.Info("model loaded", zap.String("path", *model), zap.Stringer("architecture", ckpt.Descriptor))
	return s.ListenAndServe(ctx, *addr)
}

// serveOptions builds server options, naming classes when the checkpoint was
// trained on a real dataset.
func serveOptions(ckpt *checkpoint.Checkpoint, logger *zap.Logger, origins string, maxBatch int) server.Options {
	opts := server.Options{
		Logger:         logger,
		AllowedOrigins: strings.Split(origins, ","),
		MaxBatch:       maxBatch,
	}
	if _, synthetic := ckpt.Meta.Extra[metaSynthetic]; synthetic {
		return opts
	}
	kind, err := dataset.ParseKind(ckpt.Meta.Extra[metaDataset])
	if err == nil && len(kind.Classes()) == ckpt.Descriptor.OutputSize {
		opts.Classes = kind.Classes()
	}
	return opts
}
