package regression

import "testing"

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func TestFitLinear_RecoversExactLine(t *testing.T) {
	// y = 2 + 3*x1 - x2, noiseless
	x := [][]float64{}
	y := []float64{}
	for i := 0; i < 20; i++ {
		x1 := float64(i)
		x2 := float64(i % 5)
		x = append(x, []float64{x1, x2})
		y = append(y, 2+3*x1-x2)
	}

	model, err := FitLinear(x, y)
	if err != nil {
		t.Fatalf("FitLinear error: %v", err)
	}
	if !approxEqual(model.Intercept, 2, 1e-6) {
		t.Errorf("Intercept = %v, want 2", model.Intercept)
	}
	if !approxEqual(model.Coef[0], 3, 1e-6) || !approxEqual(model.Coef[1], -1, 1e-6) {
		t.Errorf("Coef = %v, want [3, -1]", model.Coef)
	}
}

func TestFitLinear_InsufficientData(t *testing.T) {
	_, err := FitLinear([][]float64{{1, 2}}, []float64{3})
	if err == nil {
		t.Fatal("expected error with fewer observations than parameters")
	}
}

func TestFitLinear_MSE(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{0, 1, 2, 3}
	model, err := FitLinear(x, y)
	if err != nil {
		t.Fatalf("FitLinear error: %v", err)
	}
	mse := model.MSE(x, y)
	if mse > 1e-6 {
		t.Errorf("MSE = %v, want ~0 for a perfectly linear fit", mse)
	}
}

func TestFitQuantile_MonotonicWithOLS(t *testing.T) {
	x := [][]float64{}
	y := []float64{}
	for i := 0; i < 60; i++ {
		v := float64(i % 10)
		x = append(x, []float64{v})
		noise := 0.0
		if i%7 == 0 {
			noise = 5.0
		}
		y = append(y, 2*v+noise)
	}

	q, err := FitQuantile(x, y, 0.9)
	if err != nil {
		t.Fatalf("FitQuantile error: %v", err)
	}
	if q.Tau != 0.9 {
		t.Errorf("Tau = %v, want 0.9", q.Tau)
	}

	ols, _ := FitLinear(x, y)
	probe := []float64{5}
	if q.Predict(probe) < ols.Predict(probe)-10 {
		t.Errorf("0.9-quantile prediction %v should not be far below the mean prediction %v", q.Predict(probe), ols.Predict(probe))
	}
}

func TestFitLogistic_SeparatesClasses(t *testing.T) {
	x := [][]float64{}
	y := []float64{}
	for i := 0; i < 40; i++ {
		v := float64(i)
		x = append(x, []float64{v})
		if v < 20 {
			y = append(y, 0)
		} else {
			y = append(y, 1)
		}
	}

	model, err := FitLogistic(x, y)
	if err != nil {
		t.Fatalf("FitLogistic error: %v", err)
	}

	if model.PredictProba([]float64{0}) >= 0.5 {
		t.Errorf("PredictProba(0) = %v, want < 0.5", model.PredictProba([]float64{0}))
	}
	if model.PredictProba([]float64{39}) < 0.5 {
		t.Errorf("PredictProba(39) = %v, want >= 0.5", model.PredictProba([]float64{39}))
	}

	acc := model.Accuracy(x, y)
	if acc < 0.8 {
		t.Errorf("Accuracy = %v, want >= 0.8 on a cleanly separable set", acc)
	}
}
