// Package regression implements the small set of online regression
// models the slippage and maker/taker estimators need: ordinary least
// squares, quantile regression at a fixed quantile (by iteratively
// reweighted least squares), and logistic regression (by batch
// gradient descent). OLS and the quantile fit solve their linear
// systems with gonum's matrix routines; the logistic fit is a plain
// gradient-descent loop over the rows of a gonum design matrix.
package regression

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// designMatrix prepends an intercept column of ones to X.
func designMatrix(x [][]float64) *mat.Dense {
	n := len(x)
	if n == 0 {
		return mat.NewDense(0, 0, nil)
	}
	p := len(x[0])
	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x[i][j])
		}
	}
	return design
}

// linearDamping is the relative amount added to each diagonal entry
// of X'X in FitLinear.
const linearDamping = 1e-10

// Linear is a fitted ordinary-least-squares model: y = intercept +
// coef . x.
type Linear struct {
	Intercept float64
	Coef      []float64
}

// FitLinear fits y ~ X by ordinary least squares via the normal
// equations (X'X) beta = X'y, solved with gonum. Requires len(x) >
// len(x[0]) observations. The diagonal of X'X is scaled up by a
// factor of 1+linearDamping (an all-zero column gets a unit diagonal
// and a zero coefficient), so constant or collinear feature columns
// still yield a fit.
func FitLinear(x [][]float64, y []float64) (*Linear, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("regression: mismatched or empty training data")
	}

	design := designMatrix(x)
	n, p := design.Dims()
	if n < p {
		return nil, fmt.Errorf("regression: need at least %d observations, have %d", p, n)
	}

	yVec := mat.NewVecDense(len(y), y)

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	for j := 0; j < p; j++ {
		if d := xtx.At(j, j); d > 0 {
			xtx.Set(j, j, d*(1+linearDamping))
		} else {
			xtx.Set(j, j, 1)
		}
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		// a mat.Condition error only warns of ill-conditioning; beta
		// still holds the solution
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("regression: solving normal equations: %w", err)
		}
	}

	coef := make([]float64, p-1)
	for j := 0; j < p-1; j++ {
		coef[j] = beta.AtVec(j + 1)
	}

	return &Linear{Intercept: beta.AtVec(0), Coef: coef}, nil
}

// Predict evaluates the fitted model at a single feature vector.
func (l *Linear) Predict(features []float64) float64 {
	out := l.Intercept
	for i, c := range l.Coef {
		if i < len(features) {
			out += c * features[i]
		}
	}
	return out
}

// MSE computes the mean squared error of the model over x, y.
func (l *Linear) MSE(x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for i, row := range x {
		diff := y[i] - l.Predict(row)
		sum += diff * diff
	}
	return sum / float64(len(x))
}
