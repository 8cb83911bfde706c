package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	logisticIterations  = 500
	logisticLearnRate   = 0.1
	logisticL2Penalty   = 1e-3
)

// Logistic is a fitted binary logistic regression model, trained by
// batch gradient descent on cross-entropy loss with a small L2 penalty.
type Logistic struct {
	Intercept float64
	Coef      []float64
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// FitLogistic fits a binary classifier y in {0,1} ~ X.
func FitLogistic(x [][]float64, y []float64) (*Logistic, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("regression: mismatched or empty training data")
	}

	design := designMatrix(x)
	n, p := design.Dims()
	if n == 0 {
		return nil, fmt.Errorf("regression: no training data")
	}

	beta := make([]float64, p)

	for iter := 0; iter < logisticIterations; iter++ {
		grad := make([]float64, p)
		for i := 0; i < n; i++ {
			row := mat.Row(nil, i, design)
			z := 0.0
			for j := 0; j < p; j++ {
				z += beta[j] * row[j]
			}
			pred := sigmoid(z)
			errTerm := pred - y[i]
			for j := 0; j < p; j++ {
				grad[j] += errTerm * row[j]
			}
		}
		for j := 0; j < p; j++ {
			g := grad[j]/float64(n) + logisticL2Penalty*beta[j]
			beta[j] -= logisticLearnRate * g
		}
	}

	coef := make([]float64, p-1)
	for j := 0; j < p-1; j++ {
		coef[j] = beta[j+1]
	}

	return &Logistic{Intercept: beta[0], Coef: coef}, nil
}

// PredictProba returns P(class = 1) for a single feature vector.
func (l *Logistic) PredictProba(features []float64) float64 {
	z := l.Intercept
	for i, c := range l.Coef {
		if i < len(features) {
			z += c * features[i]
		}
	}
	return sigmoid(z)
}

// Accuracy computes classification accuracy at the 0.5 threshold.
func (l *Logistic) Accuracy(x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i, row := range x {
		pred := 0.0
		if l.PredictProba(row) >= 0.5 {
			pred = 1.0
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}
