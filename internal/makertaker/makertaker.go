// Package makertaker implements the online maker/taker split predictor:
// a bounded observation history feeding a binary logistic classifier
// (maker vs. taker, thresholded at 0.5 on the training target), with a
// heuristic fallback while untrained.
package makertaker

import (
	"math"
	"sync"

	"costsim/internal/regression"
	"costsim/pkg/logging"
)

const (
	historyCapacity  = 1000
	minTrainSamples  = 10
	autoTrainSamples = 50
)

// Features is the ordered feature vector the model trains and
// predicts on.
type Features struct {
	QuantityUSD  float64
	RelativeSize float64
	SpreadBps    float64
	Volatility   float64
	Imbalance    float64
	BestBidQty   float64
	BestAskQty   float64
	IsBuy        bool
}

func (f Features) vector() []float64 {
	return []float64{f.QuantityUSD, f.RelativeSize, f.SpreadBps, f.Volatility, f.Imbalance, f.BestBidQty, f.BestAskQty}
}

type observation struct {
	features []float64
	target   float64 // observed maker percentage in [0, 1]
}

// BookState is the plain-float view of order book state the estimator
// needs; the simulator derives it from internal/book's decimal-backed
// Metrics so this package stays numerically agnostic.
type BookState struct {
	SpreadBps          float64
	Imbalance          float64
	AvailableLiquidity float64
	BestBidQty         float64
	BestAskQty         float64
}

// Estimate is the full result of PredictFromBook.
type Estimate struct {
	MakerPercentage float64
	TakerPercentage float64
	Features        Features
	IsTrained       bool
	TrainingSamples int
}

// Model is the online maker/taker split estimator.
type Model struct {
	mu sync.RWMutex

	history []observation
	next    int

	logistic        *regression.Logistic
	isTrained       bool
	trainedAccuracy float64

	log *logging.Logger
}

// New builds an untrained Model.
func New() *Model {
	return &Model{log: logging.L().WithComponent("maker_taker_model")}
}

// AddObservation records one (features, observed maker percentage)
// pair, auto-training once the history reaches autoTrainSamples if the
// model hasn't trained yet.
func (m *Model) AddObservation(f Features, makerPercentage float64) {
	m.mu.Lock()
	obs := observation{features: f.vector(), target: makerPercentage}
	if len(m.history) < historyCapacity {
		m.history = append(m.history, obs)
	} else {
		m.history[m.next] = obs
		m.next = (m.next + 1) % historyCapacity
	}
	n := len(m.history)
	trained := m.isTrained
	m.mu.Unlock()

	if n >= autoTrainSamples && !trained {
		if err := m.Train(); err != nil {
			m.log.Warn("auto-train failed", logging.Err(err))
		}
	}
}

// Train thresholds the recorded maker percentages at 0.5 to form a
// binary maker/taker label and fits a logistic classifier over the
// current history. Requires at least minTrainSamples observations.
func (m *Model) Train() error {
	m.mu.RLock()
	n := len(m.history)
	x := make([][]float64, n)
	y := make([]float64, n)
	for i, obs := range m.history {
		x[i] = obs.features
		if obs.target >= 0.5 {
			y[i] = 1
		}
	}
	m.mu.RUnlock()

	if n < minTrainSamples {
		return nil
	}

	logistic, err := regression.FitLogistic(x, y)
	if err != nil {
		return err
	}
	accuracy := logistic.Accuracy(x, y)

	m.mu.Lock()
	m.logistic = logistic
	m.trainedAccuracy = accuracy
	m.isTrained = true
	m.mu.Unlock()

	m.log.Info("maker/taker model trained", logging.Int("training_samples", n), logging.Float64("accuracy", accuracy))
	return nil
}

// IsTrained reports whether the model has completed its one-shot
// training transition.
func (m *Model) IsTrained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isTrained
}

// TrainingSamples returns how many observations have been recorded.
func (m *Model) TrainingSamples() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

func heuristic(f Features) float64 {
	base := 0.3 * (1 - math.Min(0.8, 0.1*math.Log1p(f.QuantityUSD/1000)))

	spreadFactor := 1 - f.SpreadBps/50
	if spreadFactor < 0.1 {
		spreadFactor = 0.1
	}

	imbalanceFactor := 1.0
	if (f.IsBuy && f.Imbalance > 1.5) || (!f.IsBuy && f.Imbalance < 0.5) {
		imbalanceFactor = 1.5
	}

	maker := base * spreadFactor * imbalanceFactor
	return clamp01(maker)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Predict returns the predicted maker percentage in [0, 1] for f. When
// untrained, returns the documented heuristic. Any numerical failure
// in the trained path falls back to a conservative 0.1.
func (m *Model) Predict(f Features) float64 {
	m.mu.RLock()
	trained := m.isTrained
	logistic := m.logistic
	m.mu.RUnlock()

	if !trained {
		return heuristic(f)
	}

	proba := logistic.PredictProba(f.vector())
	if math.IsNaN(proba) || math.IsInf(proba, 0) {
		return 0.1
	}
	return clamp01(proba)
}

// PredictFromBook derives features from book state and predicts the
// maker/taker split for an order of quantityUSD at price, with the
// given market volatility and side.
func (m *Model) PredictFromBook(state BookState, quantityUSD, price, volatility float64, isBuy bool) Estimate {
	quantityAsset := 0.0
	if price > 0 {
		quantityAsset = quantityUSD / price
	}

	relativeSize := 1.0
	if state.AvailableLiquidity > 0 {
		relativeSize = math.Min(1.0, quantityAsset/state.AvailableLiquidity)
	}

	f := Features{
		QuantityUSD:  quantityUSD,
		RelativeSize: relativeSize,
		SpreadBps:    state.SpreadBps,
		Volatility:   volatility,
		Imbalance:    state.Imbalance,
		BestBidQty:   state.BestBidQty,
		BestAskQty:   state.BestAskQty,
		IsBuy:        isBuy,
	}

	makerPct := m.Predict(f)

	return Estimate{
		MakerPercentage: makerPct,
		TakerPercentage: 1 - makerPct,
		Features:        f,
		IsTrained:       m.IsTrained(),
		TrainingSamples: m.TrainingSamples(),
	}
}
