package book

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Timestamp: "t0",
		Exchange:  "OKX",
		Symbol:    "BTC-USDT",
		Asks: []PriceLevel{
			{"50000", "1"},
			{"50010", "2"},
		},
		Bids: []PriceLevel{
			{"49990", "1.5"},
			{"49980", "2.5"},
		},
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// S1: Ingest -> metrics.
func TestMetrics_S1(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	if err := b.Update(sampleSnapshot()); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	m := b.Metrics()
	if !m.HasAsk || !m.BestAsk.Equal(dec("50000")) {
		t.Errorf("BestAsk = %v, want 50000", m.BestAsk)
	}
	if !m.HasBid || !m.BestBid.Equal(dec("49990")) {
		t.Errorf("BestBid = %v, want 49990", m.BestBid)
	}
	if !m.HasMid || !m.Mid.Equal(dec("49995")) {
		t.Errorf("Mid = %v, want 49995", m.Mid)
	}
	if !m.Spread.Equal(dec("10")) {
		t.Errorf("Spread = %v, want 10", m.Spread)
	}
	wantBps := 10.0 / 49995.0 * 10000
	if math.Abs(m.SpreadBps-wantBps) > 1e-6 {
		t.Errorf("SpreadBps = %v, want ~%v", m.SpreadBps, wantBps)
	}
	wantImb := 4.0 / 3.0
	if math.Abs(m.Imbalance-wantImb) > 1e-9 {
		t.Errorf("Imbalance = %v, want ~%v", m.Imbalance, wantImb)
	}
}

// S2: Buy VWAP.
func TestVWAP_BuyFullFill_S2(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	res := b.VWAP(dec("2"), SideBuy)
	if !res.Filled.Equal(dec("2")) {
		t.Errorf("Filled = %v, want 2", res.Filled)
	}
	if !res.Remaining.Equal(decimal.Zero) {
		t.Errorf("Remaining = %v, want 0", res.Remaining)
	}
	if !res.HasVWAP || !res.VWAP.Equal(dec("50005")) {
		t.Errorf("VWAP = %v, want 50005", res.VWAP)
	}
}

// S3: Sell VWAP partial.
func TestVWAP_SellPartialFill_S3(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	res := b.VWAP(dec("5"), SideSell)
	if !res.Filled.Equal(dec("4")) {
		t.Errorf("Filled = %v, want 4", res.Filled)
	}
	if !res.Remaining.Equal(dec("1")) {
		t.Errorf("Remaining = %v, want 1", res.Remaining)
	}
	if !res.HasVWAP || !res.VWAP.Equal(dec("49983.75")) {
		t.Errorf("VWAP = %v, want 49983.75", res.VWAP)
	}
}

// Invariant 1: positive quantities, depth bound.
func TestUpdate_DropsZeroQuantityAndCapsDepth(t *testing.T) {
	b := New("OKX", "BTC-USDT", 1, 100*time.Millisecond)
	snap := Snapshot{
		Asks: []PriceLevel{{"100", "0"}, {"101", "1"}, {"102", "1"}},
		Bids: []PriceLevel{{"99", "1"}, {"98", "1"}},
	}
	if err := b.Update(snap); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	asks, bids := b.Depth()
	if asks != 1 || bids != 1 {
		t.Errorf("Depth = (%d, %d), want (1, 1)", asks, bids)
	}

	ask, _, ok := b.BestAsk()
	if !ok || !ask.Equal(dec("101")) {
		t.Errorf("BestAsk = %v, want 101 (zero-qty level dropped, depth capped)", ask)
	}
}

// Invariant 2: best_ask >= mid >= best_bid, spread >= 0.
func TestMetrics_Ordering(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	m := b.Metrics()
	if m.BestAsk.LessThan(m.Mid) || m.Mid.LessThan(m.BestBid) {
		t.Errorf("ordering violated: ask=%v mid=%v bid=%v", m.BestAsk, m.Mid, m.BestBid)
	}
	if m.Spread.Sign() < 0 {
		t.Errorf("Spread = %v, want >= 0", m.Spread)
	}
}

// Invariant 4: fill exhaustion when liquidity is insufficient.
func TestVWAP_Exhaustion(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	res := b.VWAP(dec("100"), SideBuy)
	if res.Remaining.Sign() <= 0 {
		t.Errorf("Remaining = %v, want > 0 when book is exhausted", res.Remaining)
	}
	if !res.Filled.Equal(dec("3")) {
		t.Errorf("Filled = %v, want 3 (total ask liquidity)", res.Filled)
	}
}

// Invariant 8: cache coherence within TTL.
func TestMetrics_CacheCoherence(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 200*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	m1 := b.Metrics()
	m2 := b.Metrics()
	if !m1.BestAsk.Equal(m2.BestAsk) || !m1.Mid.Equal(m2.Mid) || m1.Timestamp != m2.Timestamp {
		t.Errorf("cached metrics differ across calls within TTL: %+v vs %+v", m1, m2)
	}
}

func TestUpdate_RejectsMalformedLevel(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	_ = b.Update(sampleSnapshot())

	bad := Snapshot{
		Asks: []PriceLevel{{"not-a-number", "1"}},
		Bids: []PriceLevel{{"99", "1"}},
	}
	if err := b.Update(bad); err == nil {
		t.Fatal("Update with malformed level should return an error")
	}

	m := b.Metrics()
	if !m.BestAsk.Equal(dec("50000")) {
		t.Errorf("prior book should be retained after failed update, BestAsk = %v", m.BestAsk)
	}
}

func TestImbalance_InfiniteWhenNoAsks(t *testing.T) {
	b := New("OKX", "BTC-USDT", 50, 100*time.Millisecond)
	snap := Snapshot{
		Bids: []PriceLevel{{"99", "1"}},
	}
	_ = b.Update(snap)

	if !math.IsInf(b.Imbalance(), 1) {
		t.Errorf("Imbalance() = %v, want +Inf", b.Imbalance())
	}
}
