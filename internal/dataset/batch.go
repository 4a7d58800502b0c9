package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Batch is one mini-batch in matrix form.
type Batch struct {
	X      *mat.Dense // [batch_size, input_size]
	Labels []int
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.Labels)
}

// Batches cuts d into mini-batches of at most batchSize samples.
//
// Sample order is shuffled with rng; a nil rng keeps dataset order. The last
// batch may be smaller.
func Batches(d *Dataset, batchSize int, rng *rand.Rand) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	n := d.Len()
	if n == 0 {
		return nil, nil
	}
	cols := d.InputSize()

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		data := make([]float64, 0, (end-start)*cols)
		labels := make([]int, 0, end-start)
		for _, idx := range order[start:end] {
			if len(d.Images[idx]) != cols {
				return nil, fmt.Errorf("sample %d has %d features, expected %d", idx, len(d.Images[idx]), cols)
			}
			data = append(data, d.Images[idx]...)
			labels = append(labels, d.Labels[idx])
		}
		batches = append(batches, Batch{X: mat.NewDense(end-start, cols, data), Labels: labels})
	}
	return batches, nil
}
