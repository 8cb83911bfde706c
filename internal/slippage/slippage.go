// Package slippage implements the online slippage estimator: a
// bounded observation history, an ordinary-least-squares predictor for
// the expected case and a 0.9-quantile predictor for the conservative
// case, with a heuristic fallback while untrained.
package slippage

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
	conservativeTau  = 0.9
)

// Features is the ordered feature vector the model trains and
// predicts on.
type Features struct {
	QuantityUSD  float64
	RelativeSize float64
	SpreadBps    float64
	Volatility   float64
	Imbalance    float64
	IsBuy        bool
}

func (f Features) vector() []float64 {
	return []float64{f.QuantityUSD, f.RelativeSize, f.SpreadBps, f.Volatility, f.Imbalance}
}

// Mode selects which prediction the caller wants.
type Mode int

const (
	ModeExpected Mode = iota
	ModeConservative
)

type observation struct {
	features []float64
	target   float64
}

// Estimate is the full result of EstimateFromBook.
type Estimate struct {
	ExpectedBps        float64
	ConservativeBps    float64
	SimulatedBps       float64
	HasSimulated       bool
	FillRatio          float64
	AvailableLiquidity float64
	Features           Features
	IsTrained          bool
	TrainingSamples    int
}

// BookState is the plain-float view of order book state the estimator
// needs; the simulator derives it from internal/book's decimal-backed
// Metrics and VWAP so this package stays numerically agnostic.
type BookState struct {
	Mid                float64
	HasMid             bool
	SpreadBps          float64
	Imbalance          float64
	AvailableLiquidity float64 // DepthSum over the relevant side's top levels
	VWAP               float64
	Filled             float64
	HasVWAP            bool
}

// Model is the online slippage estimator.
type Model struct {
	mu sync.RWMutex

	history []observation
	next    int

	linear    *regression.Linear
	quantile  *regression.Quantile
	isTrained bool
	lastMSE   float64

	log *logging.Logger
}

// New builds an untrained Model.
func New() *Model {
	return &Model{log: logging.L().WithComponent("slippage_model")}
}

// AddObservation records one (features, actual slippage bps)
// observation, auto-training once the history reaches
// autoTrainSamples if the model hasn't trained yet.
func (m *Model) AddObservation(f Features, actualSlippageBps float64) {
	m.mu.Lock()
	obs := observation{features: f.vector(), target: actualSlippageBps}
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

// Train fits the linear predictor by OLS and, when possible, the
// 0.9-quantile predictor, over the current history. Requires at least
// minTrainSamples observations.
func (m *Model) Train() error {
	m.mu.RLock()
	n := len(m.history)
	x := make([][]float64, n)
	y := make([]float64, n)
	for i, obs := range m.history {
		x[i] = obs.features
		y[i] = obs.target
	}
	m.mu.RUnlock()

	if n < minTrainSamples {
		return nil
	}

	linear, err := regression.FitLinear(x, y)
	if err != nil {
		return err
	}

	quantile, qerr := regression.FitQuantile(x, y, conservativeTau)
	if qerr != nil {
		m.log.Warn("quantile regression unavailable, conservative path will use a safety multiplier", logging.Err(qerr))
		quantile = nil
	}

	mse := linear.MSE(x, y)

	m.mu.Lock()
	m.linear = linear
	m.quantile = quantile
	m.lastMSE = mse
	m.isTrained = true
	m.mu.Unlock()

	m.log.Info("slippage model trained", logging.Int("training_samples", n), logging.Float64("mse", mse))
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
	h := 0.5 * f.SpreadBps * (1 + 0.2*math.Log1p(f.QuantityUSD/100)) * (1 + 5*f.Volatility)

	adverse := (f.IsBuy && f.Imbalance < 1) || (!f.IsBuy && f.Imbalance > 1)
	if adverse {
		h *= 1 + 0.5*math.Abs(1-f.Imbalance)
	}
	return h
}

// Predict returns the slippage estimate in bps for f, under mode. When
// untrained, returns the documented heuristic. When trained and
// conservative with no quantile predictor available, scales the linear
// prediction by a safety factor derived from training MSE.
func (m *Model) Predict(f Features, mode Mode) float64 {
	m.mu.RLock()
	trained := m.isTrained
	linear := m.linear
	quantile := m.quantile
	mse := m.lastMSE
	m.mu.RUnlock()

	if !trained {
		return heuristic(f)
	}

	vec := f.vector()

	if mode == ModeExpected {
		return linear.Predict(vec)
	}

	if quantile != nil {
		return quantile.Predict(vec)
	}
	safety := 1 + 2*math.Sqrt(mse)
	return linear.Predict(vec) * safety
}

// EstimateFromBook derives features from book, predicts
// expected/conservative slippage, and blends in the direct VWAP fill
// already computed in book when it filled any quantity.
func (m *Model) EstimateFromBook(state BookState, quantityUSD, price, volatility float64, isBuy bool) Estimate {
	mid := state.Mid
	if !state.HasMid {
		mid = price
	}

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
		IsBuy:        isBuy,
	}

	expected := m.Predict(f, ModeExpected)
	conservative := m.Predict(f, ModeConservative)

	est := Estimate{
		ConservativeBps:    conservative,
		Features:           f,
		AvailableLiquidity: state.AvailableLiquidity,
		IsTrained:          m.IsTrained(),
		TrainingSamples:    m.TrainingSamples(),
	}

	if state.HasVWAP && state.Filled > 0 && mid > 0 {
		var simulated float64
		if isBuy {
			simulated = (state.VWAP/mid - 1) * 1e4
		} else {
			simulated = (1 - state.VWAP/mid) * 1e4
		}

		fillRatio := 0.0
		if quantityAsset > 0 {
			fillRatio = state.Filled / quantityAsset
		}

		est.SimulatedBps = simulated
		est.HasSimulated = true
		est.FillRatio = fillRatio
		expected = simulated*fillRatio + expected*(1-fillRatio)
	}

	est.ExpectedBps = expected
	return est
}
