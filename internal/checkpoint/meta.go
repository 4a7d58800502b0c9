package checkpoint

import (
	"errors"
	"fmt"
	"strconv"
)

// Meta.Extra keys describing how the training data was prepared.
const (
	MetaDataset   = "dataset"
	MetaSynthetic = "synthetic"
	MetaMean      = "normalize_mean"
	MetaStd       = "normalize_std"
	MetaSeed      = "seed"
)

// Normalization is the (x-Mean)/Std transform applied to inputs during training.
type Normalization struct {
	Mean float64
	Std  float64
}

// Apply normalizes v in place.
func (n Normalization) Apply(v []float64) {
	for i := range v {
		v[i] = (v[i] - n.Mean) / n.Std
	}
}

// Normalization returns the input normalization recorded in m.
// ok is false when the checkpoint was trained on unnormalized inputs.
func (m Meta) Normalization() (n Normalization, ok bool, err error) {
	mean, hasMean := m.Extra[MetaMean]
	std, hasStd := m.Extra[MetaStd]
	if !hasMean && !hasStd {
		return Normalization{}, false, nil
	}
	if !hasMean || !hasStd {
		return Normalization{}, false, fmt.Errorf("checkpoint metadata needs both %s and %s", MetaMean, MetaStd)
	}
	if n.Mean, err = strconv.ParseFloat(mean, 64); err != nil {
		return Normalization{}, false, fmt.Errorf("checkpoint metadata %s: %w", MetaMean, err)
	}
	if n.Std, err = strconv.ParseFloat(std, 64); err != nil {
		return Normalization{}, false, fmt.Errorf("checkpoint metadata %s: %w", MetaStd, err)
	}
	if n.Std == 0 {
		return Normalization{}, false, errors.New("checkpoint metadata normalize_std must be non-zero")
	}
	return n, true, nil
}
