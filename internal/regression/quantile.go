package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	quantileIterations = 25
	quantileEpsilon     = 1e-6
)

// Quantile is a fitted quantile regression model for a fixed quantile
// tau (e.g. 0.9), trained by iteratively reweighted least squares on
// the pinball (check) loss.
type Quantile struct {
	Tau       float64
	Intercept float64
	Coef      []float64
}

// FitQuantile fits y ~ X at quantile tau via IRLS: at each iteration,
// residuals are weighted asymmetrically (tau above zero, 1-tau below)
// and a weighted least-squares problem is solved, approximating the
// pinball loss minimizer.
func FitQuantile(x [][]float64, y []float64, tau float64) (*Quantile, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("regression: mismatched or empty training data")
	}
	if tau <= 0 || tau >= 1 {
		return nil, fmt.Errorf("regression: tau must be in (0, 1), got %v", tau)
	}

	design := designMatrix(x)
	n, p := design.Dims()
	if n < p {
		return nil, fmt.Errorf("regression: need at least %d observations, have %d", p, n)
	}

	beta := mat.NewVecDense(p, nil)
	// seed with the OLS solution for a faster, more stable start
	if ols, err := FitLinear(x, y); err == nil {
		beta.SetVec(0, ols.Intercept)
		for j, c := range ols.Coef {
			beta.SetVec(j+1, c)
		}
	}

	yVec := mat.NewVecDense(len(y), y)

	for iter := 0; iter < quantileIterations; iter++ {
		var fitted mat.VecDense
		fitted.MulVec(design, beta)

		weights := make([]float64, n)
		for i := 0; i < n; i++ {
			resid := yVec.AtVec(i) - fitted.AtVec(i)
			absResid := math.Abs(resid)
			if absResid < quantileEpsilon {
				absResid = quantileEpsilon
			}
			if resid >= 0 {
				weights[i] = tau / absResid
			} else {
				weights[i] = (1 - tau) / absResid
			}
		}

		wMat := mat.NewDiagDense(n, weights)

		var wx mat.Dense
		wx.Mul(wMat, design)

		var xtwx mat.Dense
		xtwx.Mul(design.T(), &wx)

		var wy mat.VecDense
		wy.MulVec(wMat, yVec)

		var xtwy mat.VecDense
		xtwy.MulVec(design.T(), &wy)

		var next mat.VecDense
		if err := next.SolveVec(&xtwx, &xtwy); err != nil {
			break // keep the last stable estimate
		}
		beta = &next
	}

	coef := make([]float64, p-1)
	for j := 0; j < p-1; j++ {
		coef[j] = beta.AtVec(j + 1)
	}

	return &Quantile{Tau: tau, Intercept: beta.AtVec(0), Coef: coef}, nil
}

// Predict evaluates the fitted quantile model at a single feature vector.
func (q *Quantile) Predict(features []float64) float64 {
	out := q.Intercept
	for i, c := range q.Coef {
		if i < len(features) {
			out += c * features[i]
		}
	}
	return out
}
