package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/config"
	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/logging"
)

const (
	metaDataset   = checkpoint.MetaDataset
	metaSynthetic = checkpoint.MetaSynthetic
	metaMean      = checkpoint.MetaMean
	metaStd       = checkpoint.MetaStd
	metaSeed      = checkpoint.MetaSeed
)

// dataFlags registers the dataset flags shared by several commands.
func dataFlags(fs *flag.FlagSet, d *config.Data) {
	fs.StringVar(&d.Dir, "data", d.Dir, "directory holding the IDX files")
	fs.StringVar(&d.Kind, "kind", d.Kind, "dataset: mnist or fashion")
	fs.IntVar(&d.MaxTest, "max-test", d.MaxTest, "limit test samples (0 = all)")
	fs.BoolVar(&d.Synthetic, "synthetic", d.Synthetic, "use generated data instead of IDX files")
}

func newLogger(level string) (*zap.Logger, error) {
	return logging.New(level, false)
}

func parseSizes(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid layer width %q: %w", p, err)
		}
		out[i] = n
	}
	return out, nil
}

// loadSplits returns the training and test data described by cfg.
//
// Synthetic data is generated from seed; the same seed yields the same split.
func loadSplits(cfg *config.Config, seed uint64, inputSize, classes int) (trainSet, testSet *dataset.Dataset, err error) {
	if cfg.Data.Synthetic {
		//nolint:gosec // G404: synthetic data is not security-critical
		rng := rand.New(rand.NewPCG(seed, seed+1))
		all, err := dataset.Synthetic(cfg.Data.SyntheticSamples, inputSize, classes, rng)
		if err != nil {
			return nil, nil, err
		}
		trainSet, testSet, err = all.Split(0.2, rng)
		if err != nil {
			return nil, nil, err
		}
	} else {
		kind, err := dataset.ParseKind(cfg.Data.Kind)
		if err != nil {
			return nil, nil, err
		}
		if trainSet, err = dataset.LoadIDX(cfg.Data.Dir, kind, true, cfg.Data.MaxTrain); err != nil {
			return nil, nil, fmt.Errorf("training data: %w", err)
		}
		if testSet, err = dataset.LoadIDX(cfg.Data.Dir, kind, false, cfg.Data.MaxTest); err != nil {
			return nil, nil, fmt.Errorf("test data: %w", err)
		}
	}
	if cfg.Data.Normalize {
		if err := trainSet.Normalize(cfg.Data.Mean, cfg.Data.Std); err != nil {
			return nil, nil, err
		}
		if err := testSet.Normalize(cfg.Data.Mean, cfg.Data.Std); err != nil {
			return nil, nil, err
		}
	}
	return trainSet, testSet, nil
}

// preprocessing records how the training data was prepared.
func preprocessing(cfg *config.Config) map[string]string {
	m := map[string]string{
		metaDataset: cfg.Data.Kind,
		metaSeed:    strconv.FormatUint(cfg.Train.Seed, 10),
	}
	if cfg.Data.Synthetic {
		m[metaSynthetic] = strconv.Itoa(cfg.Data.SyntheticSamples)
	}
	if cfg.Data.Normalize {
		m[metaMean] = strconv.FormatFloat(cfg.Data.Mean, 'g', -1, 64)
		m[metaStd] = strconv.FormatFloat(cfg.Data.Std, 'g', -1, 64)
	}
	return m
}

// applyPreprocessing restores the data settings recorded in a checkpoint.
// It returns the seed used for synthetic data.
func applyPreprocessing(cfg *config.Config, meta checkpoint.Meta) (uint64, error) {
	extra := meta.Extra
	if kind, ok := extra[metaDataset]; ok && kind != "" {
		cfg.Data.Kind = kind
	}
	if n, ok := extra[metaSynthetic]; ok {
		v, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("checkpoint metadata %s: %w", metaSynthetic, err)
		}
		cfg.Data.Synthetic = true
		cfg.Data.SyntheticSamples = v
	}
	norm, ok, err := meta.Normalization()
	if err != nil {
		return 0, err
	}
	cfg.Data.Normalize = ok
	if ok {
		cfg.Data.Mean, cfg.Data.Std = norm.Mean, norm.Std
	}
	var seed uint64
	if s, ok := extra[metaSeed]; ok {
		if seed, err = strconv.ParseUint(s, 10, 64); err != nil {
			return 0, fmt.Errorf("checkpoint metadata %s: %w", metaSeed, err)
		}
	}
	return seed, nil
}
