package impact

import "testing"

type stubBook struct{ imbalance float64 }

func (s stubBook) Imbalance() float64 { return s.imbalance }

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

// S5: Impact sign.
func TestEstimateMarketImpact_S5(t *testing.T) {
	m := New(0.1, 0.5, 1.0)

	buy := m.EstimateMarketImpact(10, 50000, 1000, 0.02, true)
	sell := m.EstimateMarketImpact(10, 50000, 1000, 0.02, false)

	if !approxEqual(buy.TemporaryImpact, -sell.TemporaryImpact, 1e-9) {
		t.Errorf("TemporaryImpact buy=%v sell=%v should be equal magnitude, opposite sign", buy.TemporaryImpact, sell.TemporaryImpact)
	}
	if !approxEqual(buy.PermanentImpact, -sell.PermanentImpact, 1e-9) {
		t.Errorf("PermanentImpact buy=%v sell=%v should be equal magnitude, opposite sign", buy.PermanentImpact, sell.PermanentImpact)
	}
	if !approxEqual(buy.TotalImpact, -sell.TotalImpact, 1e-9) {
		t.Errorf("TotalImpact buy=%v sell=%v should be equal magnitude, opposite sign", buy.TotalImpact, sell.TotalImpact)
	}
	if buy.TemporaryImpact <= 0 {
		t.Errorf("buy TemporaryImpact = %v, want positive", buy.TemporaryImpact)
	}
}

func TestEstimateMarketImpact_InvalidInputsReturnZero(t *testing.T) {
	m := New(0.1, 0.5, 1.0)
	e := m.EstimateMarketImpact(10, 50000, 0, 0.02, true)
	if e.TotalImpact != 0 {
		t.Errorf("TotalImpact = %v, want 0 for zero daily volume", e.TotalImpact)
	}
}

func TestImpactFromBook_ScalesWithAdverseImbalance(t *testing.T) {
	m := New(0.1, 0.5, 1.0)

	neutral := m.ImpactFromBook(stubBook{imbalance: 1}, 10, 50000, 1000, 0.02, true)
	if neutral.Multiplier != 1 {
		t.Errorf("Multiplier = %v, want 1 at neutral imbalance", neutral.Multiplier)
	}

	adverse := m.ImpactFromBook(stubBook{imbalance: 2}, 10, 50000, 1000, 0.02, true)
	wantMult := 1 + 0.2*(2-1)
	if !approxEqual(adverse.Multiplier, wantMult, 1e-9) {
		t.Errorf("Multiplier = %v, want %v", adverse.Multiplier, wantMult)
	}
	if adverse.TotalImpact <= neutral.TotalImpact {
		t.Errorf("adverse imbalance should amplify impact: adverse=%v neutral=%v", adverse.TotalImpact, neutral.TotalImpact)
	}
}

func TestImpactFromBook_FavorableImbalanceNoAmplification(t *testing.T) {
	m := New(0.1, 0.5, 1.0)
	e := m.ImpactFromBook(stubBook{imbalance: 2}, 10, 50000, 1000, 0.02, false)
	if e.Multiplier != 1 {
		t.Errorf("Multiplier = %v, want 1 (sell with imbalance > 1 is favorable)", e.Multiplier)
	}
}

func TestEstimateOptimalExecutionTime_DefaultsOnError(t *testing.T) {
	m := New(0.1, 0.5, 1.0)
	tHours := m.EstimateOptimalExecutionTime(10, 50000, 0, 0.02)
	if tHours != defaultExecutionHours {
		t.Errorf("EstimateOptimalExecutionTime = %v, want default %v on zero daily volume", tHours, defaultExecutionHours)
	}
}

func TestEstimateOptimalExecutionTime_Positive(t *testing.T) {
	m := New(0.1, 0.5, 1.0)
	tHours := m.EstimateOptimalExecutionTime(10, 50000, 1000, 0.02)
	if tHours <= 0 {
		t.Errorf("EstimateOptimalExecutionTime = %v, want > 0", tHours)
	}
}
