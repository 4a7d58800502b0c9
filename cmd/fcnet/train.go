package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
	"github.com/born-ml/fcnet/internal/train"
)

func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("train", stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	hidden := fs.String("hidden", "", "comma separated hidden layer widths (overrides config)")
	epochs := fs.Int("epochs", 0, "number of epochs (overrides config)")
	lr := fs.Float64("lr", 0, "learning rate (overrides config)")
	out := fs.String("out", "", "checkpoint output path (overrides config)")
	resume := fs.String("resume", "", "continue from a training checkpoint")
	maxTrain := fs.Int("max-train", -1, "limit training samples (0 = all)")
	synthetic := fs.Bool("synthetic", false, "use generated data instead of IDX files")
	dataDir := fs.String("data", "", "directory holding the IDX files")
	kind := fs.String("kind", "", "dataset: mnist or fashion")
	quiet := fs.Bool("quiet", false, "disable the progress bar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *hidden != "" {
		sizes, err := parseSizes(*hidden)
		if err != nil {
			return err
		}
		cfg.Model.HiddenSizes = sizes
	}
	if *epochs > 0 {
		cfg.Train.Epochs = *epochs
	}
	if *lr > 0 {
		cfg.Optimizer.LR = *lr
	}
	if *out != "" {
		cfg.Output = *out
	}
	if *maxTrain >= 0 {
		cfg.Data.MaxTrain = *maxTrain
	}
	if *synthetic {
		cfg.Data.Synthetic = true
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *kind != "" {
		cfg.Data.Kind = *kind
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	trainer, err := newTrainer(cfg, *resume, *quiet, stderr, logger)
	if err != nil {
		return err
	}

	desc := cfg.Model
	trainAll, testSet, err := loadSplits(cfg, cfg.Train.Seed, desc.InputSize, desc.OutputSize)
	if err != nil {
		return err
	}
	//nolint:gosec // G404: data shuffling is not security-critical
	trainSet, validSet, err := trainAll.Split(cfg.Data.ValidRatio, rand.New(rand.NewPCG(cfg.Train.Seed, 7)))
	if err != nil {
		return err
	}
	logger.Info("data loaded",
		zap.String("dataset", cfg.Data.Kind),
		zap.String("train", humanize.Comma(int64(trainSet.Len()))),
		zap.String("valid", humanize.Comma(int64(validSet.Len()))),
		zap.String("test", humanize.Comma(int64(testSet.Len()))),
	)

	hist, err := trainer.Fit(ctx, trainSet, validSet)
	if err != nil {
		return err
	}

	net, err := trainer.Network()
	if err != nil {
		return err
	}
	testLoss, testAcc, err := train.Evaluate(net, testSet, cfg.Train.BatchSize)
	if err != nil {
		return err
	}

	last, _ := hist.Last()
	meta := trainer.Meta(last)
	meta.Loss, meta.Accuracy = testLoss, testAcc
	if err := checkpoint.SaveTraining(cfg.Output, checkpoint.Assemble(net, meta), trainer.Optimizer(), trainer.State()); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "architecture: %s\n", desc)
	for _, m := range hist.Epochs {
		fmt.Fprintf(stdout, "epoch %3d  train_loss %.4f  valid_loss %.4f  valid_acc %.2f%%\n",
			m.Epoch, m.TrainLoss, m.ValidLoss, 100*m.ValidAccuracy)
	}
	fmt.Fprintf(stdout, "test_loss %.4f  test_acc %.2f%%\n", testLoss, 100*testAcc)
	fmt.Fprintf(stdout, "saved %s\n", cfg.Output)
	return nil
}

func newTrainer(cfg *config.Config, resume string, quiet bool, progress io.Writer, logger *zap.Logger) (*train.Trainer, error) {
	opts := []train.Option{
		train.WithLogger(logger),
		train.WithMetadata(preprocessing(cfg)),
	}
	if !quiet {
		opts = append(opts, train.WithProgress(progress))
	}

	if resume != "" {
		ckpt, opt, state, err := checkpoint.LoadTraining(resume)
		if err != nil {
			return nil, err
		}
		if !ckpt.Descriptor.Equal(cfg.Model) {
			logger.Warn("resuming with the checkpoint architecture",
				zap.Stringer("configured", cfg.Model), zap.Stringer("checkpoint", ckpt.Descriptor))
			cfg.Model = ckpt.Descriptor
		}
		logger.Info("resuming", zap.String("checkpoint", resume), zap.Int("epoch", ckpt.Meta.Epoch))
		opts = append(opts, train.WithDropout(cfg.Dropout))
		return train.Resume(ckpt, opt, state, cfg.Train, opts...)
	}

	net, err := nn.NewNetwork(cfg.Model, nn.WithSeed(cfg.Train.Seed), nn.WithDropout(cfg.Dropout))
	if err != nil {
		return nil, err
	}
	opt, err := optim.New(cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	return train.New(net, opt, cfg.Train, opts...)
}

// testSplit loads the evaluation data a checkpoint was trained against.
func testSplit(cfg *config.Config, ckpt *checkpoint.Checkpoint) (*dataset.Dataset, error) {
	seed, err := applyPreprocessing(cfg, ckpt.Meta)
	if err != nil {
		return nil, err
	}
	if cfg.Data.Synthetic {
		_, testSet, err := loadSplits(cfg, seed, ckpt.Descriptor.InputSize, ckpt.Descriptor.OutputSize)
		return testSet, err
	}
	kind, err := dataset.ParseKind(cfg.Data.Kind)
	if err != nil {
		return nil, err
	}
	testSet, err := dataset.LoadIDX(cfg.Data.Dir, kind, false, cfg.Data.MaxTest)
	if err != nil {
		return nil, fmt.Errorf("test data: %w", err)
	}
	if cfg.Data.Normalize {
		if err := testSet.Normalize(cfg.Data.Mean, cfg.Data.Std); err != nil {
			return nil, err
		}
	}
	return testSet, nil
}
