// Package simulator orchestrates the book and the three cost models
// into the per-tick and per-parameter-change simulation described in
// spec.md §4.G: a single mutation-owning goroutine drains snapshots
// and parameter changes, runs the full simulation algorithm, and
// publishes a Result to a single-writer/multi-reader atomic slot so
// readers never block the writer.
package simulator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"costsim/internal/benchmark"
	"costsim/internal/book"
	"costsim/internal/fees"
	"costsim/internal/impact"
	"costsim/internal/makertaker"
	"costsim/internal/slippage"
	"costsim/pkg/logging"
)

const (
	// placeholderDailyVolumeMultiplier stands in for a real market-data
	// feed until one is wired in; see spec.md §9's Open Question on
	// daily_volume.
	placeholderDailyVolumeMultiplier = 1000.0

	// snapshotBufferSize bounds the ingest->mutation-worker channel.
	// A backlog this deep means the worker cannot keep up; see
	// SPEC_FULL.md §5.
	snapshotBufferSize = 256

	// depthLevelsForLiquidity is how many top-of-book levels feed the
	// "available liquidity" figure the estimators use for relative size:
	// relative_size = min(1, quantity_base / depth_sum(side, 5)) per
	// spec.md §4.E, matching original_source/models/slippage.py's [:5].
	depthLevelsForLiquidity = 5

	// conservativeImpactSafetyMargin scales market impact in the
	// conservative net-cost figure per spec.md §4.G step 7.
	conservativeImpactSafetyMargin = 1.2
)

var bufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "costsim",
		Subsystem: "simulator",
		Name:      "buffer_overflow_total",
		Help:      "Count of commands dropped because the mutation worker could not keep up.",
	},
	[]string{"kind"},
)

// Config bundles the tuning knobs the simulator needs beyond what each
// component already defaults, mirroring internal/config.SimulationConfig.
type Config struct {
	ProcessingBatchSize    int
	BenchmarkInterval      int
	ImpactMarketFactor     float64
	ImpactVolatilityFactor float64
	ImpactRiskAversion     float64
}

// Simulator is the tick handler: it owns Book and the three estimator
// models exclusively, and exposes the current Parameters and the
// latest published Result to external callers.
type Simulator struct {
	book            *book.Book
	benchmarker     *benchmark.Benchmarker
	slippageModel   *slippage.Model
	makerTakerModel *makertaker.Model
	feeSchedule     *fees.Schedule
	impactModel     *impact.Model

	processingBatchSize int64
	benchmarkInterval   int64

	paramsMu sync.RWMutex
	params   Parameters

	tickCount int64 // atomic

	result atomic.Pointer[Result]

	snapshots    chan book.Snapshot
	pendingParam atomic.Pointer[ParameterChange]
	paramSignal  chan struct{}

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	log *logging.Logger
}

// New builds a Simulator around an already-constructed Book, seeded
// with initial Parameters. It does not start the mutation worker;
// call Start.
func New(b *book.Book, initial Parameters, cfg Config) *Simulator {
	if cfg.ProcessingBatchSize <= 0 {
		cfg.ProcessingBatchSize = 100
	}
	if cfg.BenchmarkInterval <= 0 {
		cfg.BenchmarkInterval = 100
	}

	return &Simulator{
		book:                b,
		benchmarker:         benchmark.New(),
		slippageModel:       slippage.New(),
		makerTakerModel:     makertaker.New(),
		feeSchedule:         fees.New(),
		impactModel:         impact.New(cfg.ImpactMarketFactor, cfg.ImpactVolatilityFactor, cfg.ImpactRiskAversion),
		processingBatchSize: int64(cfg.ProcessingBatchSize),
		benchmarkInterval:   int64(cfg.BenchmarkInterval),
		params:              initial,
		snapshots:           make(chan book.Snapshot, snapshotBufferSize),
		paramSignal:         make(chan struct{}, 1),
		log:                 logging.L().WithComponent("simulator"),
	}
}

// Start enables processing. Idempotent: calling Start on an already
// running Simulator is a no-op.
func (s *Simulator) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run()
	s.log.Info("simulator started")
}

// Stop ends the mutation worker after the work it is handling
// finishes. Snapshots and parameter changes still queued, or sent
// after Stop, are not processed unless Start is called again. The
// published Result is retained. Idempotent.
func (s *Simulator) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("simulator stopped")
}

// OnSnapshot is called by the transport with a freshly parsed
// snapshot. It enqueues the update and returns immediately; it never
// blocks on the mutation worker.
func (s *Simulator) OnSnapshot(snap book.Snapshot) {
	select {
	case s.snapshots <- snap:
	default:
		bufferOverflows.WithLabelValues("snapshot").Inc()
		s.log.Warn("snapshot buffer full, dropping tick")
	}
}

// SetParameter applies a control-surface change that
// ParseParameterChange (or a named constructor) has already
// validated. It never runs the simulation on the calling goroutine: it stores the
// change in a single-slot last-write-wins queue and wakes the
// mutation worker, which performs the out-of-band full simulation.
func (s *Simulator) SetParameter(change ParameterChange) {
	s.pendingParam.Store(&change)
	select {
	case s.paramSignal <- struct{}{}:
	default:
		// a signal is already pending; the worker will pick up the
		// latest stored change when it gets there
	}
}

// Parameters returns a copy of the currently active parameter set.
func (s *Simulator) Parameters() Parameters {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

// Results returns the latest published Result, or the zero value and
// false if no simulation has completed yet.
func (s *Simulator) Results() (Result, bool) {
	r := s.result.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Performance returns the Benchmarker's current aggregate plus Book
// performance counters.
func (s *Simulator) Performance() Performance {
	bres := s.benchmarker.Results()
	labels := make(map[string]BenchmarkLabel, len(bres.Labels))
	for name, l := range bres.Labels {
		labels[name] = BenchmarkLabel{
			Count: l.Count, Min: l.Min, Max: l.Max, Last: l.Last,
			Avg: l.Avg, P50: l.P50, P90: l.P90, P99: l.P99,
		}
	}

	asks, bids := s.book.Depth()
	return Performance{
		BenchmarkLabels:   labels,
		TotalUptime:       bres.TotalUptime,
		BookDepthAsks:     asks,
		BookDepthBids:     bids,
		BookUpdateLatency: s.book.LastUpdateLatency(),
		BookUpdateCount:   s.book.UpdateCount(),
		TickCount:         atomic.LoadInt64(&s.tickCount),
	}
}

func (s *Simulator) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case snap := <-s.snapshots:
			s.handleSnapshot(snap)
		case <-s.paramSignal:
			if change := s.pendingParam.Swap(nil); change != nil {
				s.handleParameterChange(*change)
			}
		}
	}
}

func (s *Simulator) handleSnapshot(snap book.Snapshot) {
	stop := s.benchmarker.Measure("orderbook_update")
	err := s.book.Update(snap)
	stop()
	if err != nil {
		s.log.Warn("book update failed", logging.Err(err))
		return
	}

	tick := atomic.AddInt64(&s.tickCount, 1)

	if tick%s.processingBatchSize == 0 {
		s.runSimulation()
	}
	if tick%s.benchmarkInterval == 0 {
		results := s.benchmarker.Results()
		s.log.Info("benchmark results",
			logging.Int("tick", int(tick)),
			logging.Int("labels_tracked", len(results.Labels)))
	}
}

func (s *Simulator) handleParameterChange(change ParameterChange) {
	s.paramsMu.Lock()
	s.params = s.params.apply(change)
	s.paramsMu.Unlock()
	s.runSimulation()
}

// runSimulation is the full simulation algorithm from spec.md §4.G:
// read Book metrics, invoke E, F, C, D in order, compose net cost,
// and publish. A failed step leaves the prior Result in place.
func (s *Simulator) runSimulation() {
	simStart := time.Now()
	stop := s.benchmarker.Measure("full_simulation")
	defer stop()

	metrics := s.book.Metrics()
	if !metrics.HasMid {
		s.log.Warn("cannot run simulation: orderbook has no mid price yet")
		return
	}
	mid, _ := metrics.Mid.Float64()
	if mid <= 0 {
		s.log.Warn("cannot run simulation: non-positive mid price")
		return
	}

	params := s.Parameters()
	quantityAsset := params.QuantityUSD / mid
	dailyVolume := mid * placeholderDailyVolumeMultiplier

	availLiquidity, _ := s.book.DepthSum(book.SideBuy, depthLevelsForLiquidity).Float64()
	vwap := s.book.VWAP(decimal.NewFromFloat(quantityAsset), book.SideBuy)
	vwapPrice, _ := vwap.VWAP.Float64()
	filled, _ := vwap.Filled.Float64()

	bestBidQty, _ := metrics.BestBidQty.Float64()
	bestAskQty, _ := metrics.BestAskQty.Float64()

	var slipEst slippage.Estimate
	func() {
		defer s.benchmarker.Measure("slippage_estimation")()
		slipEst = s.slippageModel.EstimateFromBook(slippage.BookState{
			Mid:                mid,
			HasMid:             true,
			SpreadBps:          metrics.SpreadBps,
			Imbalance:          metrics.Imbalance,
			AvailableLiquidity: availLiquidity,
			VWAP:               vwapPrice,
			Filled:             filled,
			HasVWAP:            vwap.HasVWAP,
		}, params.QuantityUSD, mid, params.Volatility, true)
	}()

	var mtEst makertaker.Estimate
	func() {
		defer s.benchmarker.Measure("maker_taker_prediction")()
		mtEst = s.makerTakerModel.PredictFromBook(makertaker.BookState{
			SpreadBps:          metrics.SpreadBps,
			Imbalance:          metrics.Imbalance,
			AvailableLiquidity: availLiquidity,
			BestBidQty:         bestBidQty,
			BestAskQty:         bestAskQty,
		}, params.QuantityUSD, mid, params.Volatility, true)
	}()

	var feeResult fees.Result
	func() {
		defer s.benchmarker.Measure("fee_calculation")()
		feeResult = s.feeSchedule.Calculate(params.Exchange, params.OrderType, quantityAsset, mid, params.FeeTier, mtEst.MakerPercentage)
	}()

	var impactEst impact.Estimate
	func() {
		defer s.benchmarker.Measure("market_impact_calculation")()
		impactEst = s.impactModel.ImpactFromBook(s.book, quantityAsset, mid, dailyVolume, params.Volatility, true)
	}()

	var netExpected, netConservative float64
	func() {
		defer s.benchmarker.Measure("net_cost_calculation")()
		netExpected = slipEst.ExpectedBps + feeResult.EffectiveRate*1e4 + impactEst.TotalImpactBps
		netConservative = slipEst.ConservativeBps + feeResult.EffectiveRate*1e4 + impactEst.TotalImpactBps*conservativeImpactSafetyMargin
	}()

	bestBid, _ := metrics.BestBid.Float64()
	bestAsk, _ := metrics.BestAsk.Float64()

	result := &Result{
		Timestamp:  time.Now(),
		Parameters: params,
		Slippage: SlippageResult{
			ExpectedBps:     slipEst.ExpectedBps,
			ConservativeBps: slipEst.ConservativeBps,
		},
		Fees: FeesResult{
			MakerFee:         feeResult.MakerFee,
			TakerFee:         feeResult.TakerFee,
			TotalFee:         feeResult.TotalFee,
			EffectiveRateBps: feeResult.EffectiveRate * 1e4,
		},
		MarketImpact: MarketImpactResult{
			TemporaryBps: impactEst.TemporaryImpact / mid * 1e4,
			PermanentBps: impactEst.PermanentImpact / mid * 1e4,
			TotalBps:     impactEst.TotalImpactBps,
		},
		NetCost: NetCostResult{
			ExpectedBps:     netExpected,
			ConservativeBps: netConservative,
		},
		MakerTaker: MakerTakerResult{
			MakerPercentage: mtEst.MakerPercentage,
			TakerPercentage: mtEst.TakerPercentage,
		},
		Orderbook: OrderbookSummary{
			BestBid:   bestBid,
			BestAsk:   bestAsk,
			Mid:       mid,
			SpreadBps: metrics.SpreadBps,
		},
		InternalLatencyMs: float64(time.Since(simStart)) / float64(time.Millisecond),
	}

	s.result.Store(result)
	s.log.Debug("simulation complete",
		logging.NetCostBps(netExpected),
		logging.Float64("net_conservative_bps", netConservative))
}
