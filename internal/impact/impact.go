// Package impact implements the Almgren-Chriss temporary/permanent
// market impact model, including an orderbook-imbalance adjustment and
// an optimal-execution-time estimate used for display.
package impact

import (
	"math"

	"costsim/pkg/logging"
)

// Model holds the Almgren-Chriss parameters: eta (market impact
// factor), sigmaF (volatility factor, reserved for a future
// volatility-impact term) and gamma (risk aversion).
type Model struct {
	Eta    float64
	SigmaF float64
	Gamma  float64
	log    *logging.Logger
}

// New builds a Model with the given parameters.
func New(eta, sigmaF, gamma float64) *Model {
	return &Model{Eta: eta, SigmaF: sigmaF, Gamma: gamma, log: logging.L().WithComponent("impact")}
}

// Estimate is the result of EstimateMarketImpact / ImpactFromBook.
type Estimate struct {
	TemporaryImpact float64
	PermanentImpact float64
	TotalImpact     float64
	TotalImpactBps  float64
	Imbalance       float64
	Multiplier      float64
}

// EstimateMarketImpact computes temporary and permanent impact for an
// order of the given quantity at price, relative to dailyVolume and
// volatility. isBuy selects the sign of both components.
func (m *Model) EstimateMarketImpact(quantity, price, dailyVolume, volatility float64, isBuy bool) Estimate {
	if dailyVolume <= 0 || price <= 0 {
		m.log.Warn("invalid inputs to market impact estimate, returning zeroed impact")
		return Estimate{}
	}

	u := quantity / dailyVolume

	temporary := price * m.Eta * volatility * math.Sqrt(u)
	permanent := price * m.Eta * u

	sign := 1.0
	if !isBuy {
		sign = -1.0
	}
	temporary *= sign
	permanent *= sign

	total := temporary + permanent

	return Estimate{
		TemporaryImpact: temporary,
		PermanentImpact: permanent,
		TotalImpact:     total,
		TotalImpactBps:  total / price * 1e4,
		Multiplier:      1,
	}
}

// imbalanceSource is the minimal view of book state ImpactFromBook
// needs: the current bid/ask imbalance.
type imbalanceSource interface {
	Imbalance() float64
}

// ImpactFromBook scales EstimateMarketImpact's components by a factor
// that widens impact when the book's imbalance works against the
// order's direction.
func (m *Model) ImpactFromBook(b imbalanceSource, quantity, price, dailyVolume, volatility float64, isBuy bool) Estimate {
	imbalance := b.Imbalance()

	multiplier := 1.0
	switch {
	case isBuy && imbalance > 1:
		multiplier = 1 + 0.2*(imbalance-1)
	case !isBuy && imbalance < 1:
		multiplier = 1 + 0.2*(1-imbalance)
	}

	base := m.EstimateMarketImpact(quantity, price, dailyVolume, volatility, isBuy)

	return Estimate{
		TemporaryImpact: base.TemporaryImpact * multiplier,
		PermanentImpact: base.PermanentImpact * multiplier,
		TotalImpact:     base.TotalImpact * multiplier,
		TotalImpactBps:  base.TotalImpactBps * multiplier,
		Imbalance:       imbalance,
		Multiplier:      multiplier,
	}
}

// defaultExecutionHours is returned by EstimateOptimalExecutionTime on
// any arithmetic failure.
const defaultExecutionHours = 0.5

// EstimateOptimalExecutionTime estimates the optimal execution horizon
// in hours, for display only — not used on the hot simulation path.
func (m *Model) EstimateOptimalExecutionTime(quantity, price, dailyVolume, volatility float64) float64 {
	if dailyVolume <= 0 || price <= 0 || m.Eta <= 0 {
		return defaultExecutionHours
	}

	u := quantity / dailyVolume
	inner := m.Gamma * volatility * volatility * u / (2 * m.Eta * price)
	if inner < 0 || math.IsNaN(inner) || math.IsInf(inner, 0) {
		return defaultExecutionHours
	}

	hours := math.Sqrt(inner) * 24
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return defaultExecutionHours
	}
	return hours
}
