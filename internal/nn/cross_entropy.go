package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropy returns the mean negative log-likelihood of labels under
// softmax(logits).
//
// logits has shape [batch_size, num_classes]; labels holds one class index per row.
func CrossEntropy(logits mat.Matrix, labels []int) (float64, error) {
	logProbs := LogSoftmax(logits)
	return nllLoss(logProbs, labels)
}

// nllLoss averages -logProbs[i, labels[i]] over the batch.
func nllLoss(logProbs *mat.Dense, labels []int) (float64, error) {
	r, c := logProbs.Dims()
	if len(labels) != r {
		return 0, fmt.Errorf("label count %d does not match batch size %d", len(labels), r)
	}
	var total float64
	for i, y := range labels {
		if y < 0 || y >= c {
			return 0, fmt.Errorf("label %d at row %d out of range [0, %d)", y, i, c)
		}
		total -= logProbs.At(i, y)
	}
	return total / float64(r), nil
}

// Accuracy returns the fraction of rows whose argmax equals the label.
func Accuracy(logits mat.Matrix, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i, p := range Argmax(logits) {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}
