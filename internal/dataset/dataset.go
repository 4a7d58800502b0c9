// Package dataset loads MNIST-style image classification data.
//
// Images are flattened row-major into float64 vectors scaled to [0, 1].
package dataset

import (
	"fmt"
	"math/rand/v2"
)

// Kind selects one of the IDX datasets this package knows how to fetch.
type Kind string

// Supported datasets.
const (
	MNIST   Kind = "mnist"
	Fashion Kind = "fashion"
)

var (
	digitClasses   = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
	fashionClasses = []string{
		"T-shirt/top", "Trouser", "Pullover", "Dress", "Coat",
		"Sandal", "Shirt", "Sneaker", "Bag", "Ankle boot",
	}
)

// ParseKind parses "mnist" or "fashion".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case MNIST, Fashion:
		return k, nil
	default:
		return "", fmt.Errorf("unknown dataset %q (want mnist or fashion)", s)
	}
}

// Classes returns the human readable class names, indexed by label.
func (k Kind) Classes() []string {
	if k == Fashion {
		return append([]string(nil), fashionClasses...)
	}
	return append([]string(nil), digitClasses...)
}

// Dataset holds flattened images and their labels.
type Dataset struct {
	Images  [][]float64 // [num_samples][width*height]
	Labels  []int       // [num_samples]
	Classes []string    // label -> name
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// InputSize returns the length of each image vector, or 0 for an empty dataset.
func (d *Dataset) InputSize() int {
	if len(d.Images) == 0 {
		return 0
	}
	return len(d.Images[0])
}

// NumClasses returns the number of classes.
func (d *Dataset) NumClasses() int {
	return len(d.Classes)
}

// Subset returns the first n samples (all of them when n <= 0 or n >= Len).
// The returned dataset shares image storage with d.
func (d *Dataset) Subset(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		n = d.Len()
	}
	return &Dataset{Images: d.Images[:n], Labels: d.Labels[:n], Classes: d.Classes}
}

// Split shuffles sample order with rng and splits off a validation fraction.
//
// ratio must be in [0, 1). A nil rng keeps the original order.
func (d *Dataset) Split(ratio float64, rng *rand.Rand) (train, valid *Dataset, err error) {
	if ratio < 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("validation ratio must be in [0, 1), got %g", ratio)
	}
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	nValid := int(float64(d.Len()) * ratio)
	return d.pick(idx[nValid:]), d.pick(idx[:nValid]), nil
}

func (d *Dataset) pick(idx []int) *Dataset {
	out := &Dataset{
		Images:  make([][]float64, len(idx)),
		Labels:  make([]int, len(idx)),
		Classes: d.Classes,
	}
	for i, j := range idx {
		out.Images[i] = d.Images[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

// Normalize applies (x - mean) / std to every pixel in place.
func (d *Dataset) Normalize(mean, std float64) error {
	if std <= 0 {
		return fmt.Errorf("std must be positive, got %g", std)
	}
	for _, img := range d.Images {
		for j, v := range img {
			img[j] = (v - mean) / std
		}
	}
	return nil
}

// Synthetic generates n samples of a separable classification problem.
//
// Each class has a random prototype in [0, 1]^inputSize and samples are the
// prototype plus uniform noise of amplitude 0.1.
func Synthetic(n, inputSize, classes int, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 || inputSize <= 0 || classes <= 1 {
		return nil, fmt.Errorf("synthetic dataset needs n > 0, inputSize > 0 and classes > 1 (got %d, %d, %d)",
			n, inputSize, classes)
	}
	if rng == nil {
		return nil, fmt.Errorf("synthetic dataset requires a random source")
	}

	prototypes := make([][]float64, classes)
	for c := range prototypes {
		prototypes[c] = make([]float64, inputSize)
		for j := range prototypes[c] {
			prototypes[c][j] = rng.Float64()
		}
	}

	ds := &Dataset{
		Images:  make([][]float64, n),
		Labels:  make([]int, n),
		Classes: make([]string, classes),
	}
	for c := range ds.Classes {
		ds.Classes[c] = fmt.Sprintf("class_%d", c)
	}
	for i := range n {
		c := i % classes
		img := make([]float64, inputSize)
		for j, p := range prototypes[c] {
			img[j] = p + 0.1*(rng.Float64()-0.5)
		}
		ds.Images[i] = img
		ds.Labels[i] = c
	}
	return ds, nil
}
