package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// reluInPlace applies f(x) = max(0, x) to every element of m.
func reluInPlace(m *mat.Dense) {
	raw := m.RawMatrix()
	for r := 0; r < raw.Rows; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+raw.Cols]
		for i, v := range row {
			if v < 0 {
				row[i] = 0
			}
		}
	}
}

// LogSoftmax computes log(softmax(row)) for every row of logits.
//
// Uses the log-sum-exp trick:
//
//	LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z))))
func LogSoftmax(logits mat.Matrix) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(logits)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		lse := floats.LogSumExp(row)
		floats.AddConst(-lse, row)
	}
	return out
}

// Softmax computes row-wise class probabilities.
func Softmax(logits mat.Matrix) *mat.Dense {
	out := LogSoftmax(logits)
	raw := out.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = math.Exp(raw.Data[i])
	}
	return out
}

// Argmax returns the index of the largest value in each row.
func Argmax(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if m.At(i, j) > m.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
