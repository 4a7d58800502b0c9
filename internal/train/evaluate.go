package train

import (
	"fmt"

	"github.com/born-ml/fcnet/internal/dataset"
	"github.com/born-ml/fcnet/internal/nn"
)

// Evaluate returns mean cross-entropy loss and accuracy of net on ds.
// Dropout is never applied.
func Evaluate(net *nn.Network, ds *dataset.Dataset, batchSize int) (loss, accuracy float64, err error) {
	if ds.Len() == 0 {
		return 0, 0, fmt.Errorf("evaluation set is empty")
	}
	if got, want := ds.InputSize(), net.Descriptor().InputSize; got != want {
		return 0, 0, fmt.Errorf("samples have %d features, network expects %d", got, want)
	}
	batches, err := dataset.Batches(ds, batchSize, nil)
	if err != nil {
		return 0, 0, err
	}

	var lossSum, correct float64
	for _, b := range batches {
		logits := net.Forward(b.X)
		l, err := nn.CrossEntropy(logits, b.Labels)
		if err != nil {
			return 0, 0, err
		}
		n := float64(b.Size())
		lossSum += l * n
		correct += nn.Accuracy(logits, b.Labels) * n
	}
	total := float64(ds.Len())
	return lossSum / total, correct / total, nil
}
