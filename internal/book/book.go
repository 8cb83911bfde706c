// Package book maintains an in-memory level-2 order book for a single
// exchange/symbol pair and serves the derived metrics (best prices,
// spread, imbalance, VWAP fills) the rest of the pipeline depends on.
//
// Prices are stored as fixed-point integers (price * priceScale) so
// that ladder ordering and equality are exact, instead of keying a map
// by a floating-point price as the reference implementation does; this
// also keeps both ladders as sorted slices, so best-bid/best-ask is a
// constant-time read of the first element rather than an O(depth) scan.
package book

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"costsim/pkg/logging"
)

// priceScale fixes prices to 8 decimal places, matching the precision
// exchanges commonly quote spot prices at.
const priceScale = 100000000

// Side identifies which ladder an operation concerns.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Level is one price/quantity point in a ladder.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// PriceLevel is a raw (price, quantity) pair as received over the wire.
type PriceLevel [2]string

// Snapshot is an immutable full level-2 order book update.
type Snapshot struct {
	Timestamp string       `json:"timestamp"`
	Exchange  string       `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
}

// Metrics is a cached snapshot of the book's derived quantities.
type Metrics struct {
	BestAsk     decimal.Decimal
	BestAskQty  decimal.Decimal
	BestBid     decimal.Decimal
	BestBidQty  decimal.Decimal
	HasAsk      bool
	HasBid      bool
	Mid         decimal.Decimal
	HasMid      bool
	Spread      decimal.Decimal
	SpreadBps   float64
	Imbalance   float64
	Timestamp   string
	Exchange    string
	Symbol      string
	computedAt  time.Time
}

// VWAPResult is the outcome of walking one side of the book to fill a
// requested base-asset quantity.
type VWAPResult struct {
	VWAP      decimal.Decimal
	HasVWAP   bool
	Filled    decimal.Decimal
	Remaining decimal.Decimal
}

// Book is a sorted bid/ask ladder pair with a TTL-cached metrics view.
// Safe for concurrent readers once constructed; Update must be called
// from a single mutation owner per the simulator's concurrency model.
type Book struct {
	mu sync.RWMutex

	maxDepth   int
	metricsTTL time.Duration

	asks []priceTick // ascending by price
	bids []priceTick // descending by price

	cachedMetrics *Metrics

	exchange string
	symbol   string

	updateCount int64
	lastUpdate  time.Duration
	log         *logging.Logger
}

type priceTick struct {
	ticks int64 // price * priceScale
	price decimal.Decimal
	qty   decimal.Decimal
}

// New builds an empty Book. maxDepth bounds the number of retained
// levels per side; metricsTTL bounds how long a cached Metrics value
// may be reused before recomputation.
func New(exchange, symbol string, maxDepth int, metricsTTL time.Duration) *Book {
	if maxDepth <= 0 {
		maxDepth = 50
	}
	if metricsTTL <= 0 {
		metricsTTL = 100 * time.Millisecond
	}
	return &Book{
		maxDepth:   maxDepth,
		metricsTTL: metricsTTL,
		exchange:   exchange,
		symbol:     symbol,
		log:        logging.L().WithComponent("book").WithExchange(exchange).WithSymbol(symbol),
	}
}

func toTicks(price decimal.Decimal) int64 {
	scaled := price.Mul(decimal.NewFromInt(priceScale))
	return scaled.Round(0).IntPart()
}

func parseLevels(raw []PriceLevel) ([]priceTick, error) {
	out := make([]priceTick, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", lvl[0], err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", lvl[1], err)
		}
		if qty.Sign() <= 0 {
			continue // zero/negative quantity levels are dropped on ingestion
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("non-positive price %q", lvl[0])
		}
		out = append(out, priceTick{ticks: toTicks(price), price: price, qty: qty})
	}
	return out, nil
}

// Update replaces both ladders wholesale from snapshot, trims each to
// maxDepth, and invalidates the metrics cache. A parse failure in any
// level fails the whole update and leaves the prior book untouched.
func (b *Book) Update(snapshot Snapshot) error {
	start := time.Now()

	asks, err := parseLevels(snapshot.Asks)
	if err != nil {
		b.log.Warn("discarding snapshot: bad ask level", logging.Err(err))
		return err
	}
	bids, err := parseLevels(snapshot.Bids)
	if err != nil {
		b.log.Warn("discarding snapshot: bad bid level", logging.Err(err))
		return err
	}

	sort.Slice(asks, func(i, j int) bool { return asks[i].ticks < asks[j].ticks })
	sort.Slice(bids, func(i, j int) bool { return bids[i].ticks > bids[j].ticks })

	if len(asks) > b.maxDepth {
		asks = asks[:b.maxDepth]
	}
	if len(bids) > b.maxDepth {
		bids = bids[:b.maxDepth]
	}

	b.mu.Lock()
	b.asks = asks
	b.bids = bids
	b.cachedMetrics = nil
	b.updateCount++
	b.lastUpdate = time.Since(start)
	b.exchange = snapshot.Exchange
	b.symbol = snapshot.Symbol
	b.mu.Unlock()

	return nil
}

// BestAsk returns the lowest ask price/quantity, or ok=false if the
// ask side is empty.
func (b *Book) BestAsk() (price, qty decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return b.asks[0].price, b.asks[0].qty, true
}

// BestBid returns the highest bid price/quantity, or ok=false if the
// bid side is empty.
func (b *Book) BestBid() (price, qty decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return b.bids[0].price, b.bids[0].qty, true
}

// Mid returns the arithmetic mean of best bid and best ask.
func (b *Book) Mid() (decimal.Decimal, bool) {
	ask, _, okA := b.BestAsk()
	bid, _, okB := b.BestBid()
	if !okA || !okB {
		return decimal.Zero, false
	}
	two := decimal.NewFromInt(2)
	return ask.Add(bid).Div(two), true
}

// Spread returns best_ask - best_bid.
func (b *Book) Spread() (decimal.Decimal, bool) {
	ask, _, okA := b.BestAsk()
	bid, _, okB := b.BestBid()
	if !okA || !okB {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Imbalance returns sum(bid_qty) / sum(ask_qty) over the full retained
// depth. Returns +Inf if total ask quantity is zero.
func (b *Book) Imbalance() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var bidSum, askSum decimal.Decimal
	for _, l := range b.bids {
		bidSum = bidSum.Add(l.qty)
	}
	for _, l := range b.asks {
		askSum = askSum.Add(l.qty)
	}
	if askSum.Sign() == 0 {
		return math.Inf(1)
	}
	ratio, _ := bidSum.Div(askSum).Float64()
	return ratio
}

// DepthSum sums quantity over the top `levels` entries of side.
func (b *Book) DepthSum(side Side, levels int) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ladder := b.asks
	if side == SideBuy {
		// buying walks the ask side for available liquidity
		ladder = b.asks
	} else {
		ladder = b.bids
	}
	if levels > len(ladder) {
		levels = len(ladder)
	}
	var sum decimal.Decimal
	for i := 0; i < levels; i++ {
		sum = sum.Add(ladder[i].qty)
	}
	return sum
}

// VWAP walks the book from the best price outward on the side implied
// by side (asks ascending for buys, bids descending for sells),
// consuming liquidity until quantityBase is filled or the book is
// exhausted.
func (b *Book) VWAP(quantityBase decimal.Decimal, side Side) VWAPResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ladder := b.bids
	if side == SideBuy {
		ladder = b.asks
	}

	remaining := quantityBase
	filled := decimal.Zero
	notional := decimal.Zero

	for _, lvl := range ladder {
		if remaining.Sign() <= 0 {
			break
		}
		take := lvl.qty
		if take.GreaterThan(remaining) {
			take = remaining
		}
		notional = notional.Add(take.Mul(lvl.price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}

	res := VWAPResult{Filled: filled, Remaining: remaining}
	if filled.Sign() > 0 {
		res.VWAP = notional.Div(filled)
		res.HasVWAP = true
	}
	return res
}

// Metrics returns the cached metrics record if it is younger than
// metricsTTL, recomputing and refreshing the cache otherwise.
func (b *Book) Metrics() Metrics {
	b.mu.RLock()
	cached := b.cachedMetrics
	b.mu.RUnlock()

	if cached != nil && time.Since(cached.computedAt) <= b.metricsTTL {
		return *cached
	}

	m := b.computeMetrics()

	b.mu.Lock()
	b.cachedMetrics = &m
	b.mu.Unlock()

	return m
}

func (b *Book) computeMetrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m := Metrics{
		Exchange:   b.exchange,
		Symbol:     b.symbol,
		computedAt: time.Now(),
	}

	if len(b.asks) > 0 {
		m.BestAsk = b.asks[0].price
		m.BestAskQty = b.asks[0].qty
		m.HasAsk = true
	}
	if len(b.bids) > 0 {
		m.BestBid = b.bids[0].price
		m.BestBidQty = b.bids[0].qty
		m.HasBid = true
	}

	if m.HasAsk && m.HasBid {
		two := decimal.NewFromInt(2)
		m.Mid = m.BestAsk.Add(m.BestBid).Div(two)
		m.HasMid = true
		m.Spread = m.BestAsk.Sub(m.BestBid)
		if m.Mid.Sign() != 0 {
			bps, _ := m.Spread.Div(m.Mid).Mul(decimal.NewFromInt(10000)).Float64()
			m.SpreadBps = bps
		}
	}

	var bidSum, askSum decimal.Decimal
	for _, l := range b.bids {
		bidSum = bidSum.Add(l.qty)
	}
	for _, l := range b.asks {
		askSum = askSum.Add(l.qty)
	}
	if askSum.Sign() == 0 {
		m.Imbalance = math.Inf(1)
	} else {
		ratio, _ := bidSum.Div(askSum).Float64()
		m.Imbalance = ratio
	}

	return m
}

// Depth returns the number of retained ask/bid levels.
func (b *Book) Depth() (asks, bids int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.asks), len(b.bids)
}

// LastUpdateLatency returns the elapsed time of the most recent Update
// call, for performance reporting.
func (b *Book) LastUpdateLatency() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// UpdateCount returns how many successful updates the book has
// processed since construction.
func (b *Book) UpdateCount() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updateCount
}
