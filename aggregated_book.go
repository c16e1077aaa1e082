package match

import (
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// PriceLevelView is one aggregated price level in display prices.
type PriceLevelView struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// AggregatedBook maintains a simplified view of the order books, tracking
// only price levels and their aggregated quantities (depth) in display
// prices (ticks multiplied by the tick size). It is designed for
// downstream consumers that need order book depth without per-order
// detail: market-data publication, UIs, risk feeds.
//
// It implements NotificationSink and BookListener, so it can be plugged
// into the engine directly or behind an AsyncSink.
type AggregatedBook struct {
	mu          sync.RWMutex
	tickSize    decimal.Decimal
	instruments map[string]*aggregatedInstrument
	lastBest    map[string]BestPriceEvent
}

type aggregatedInstrument struct {
	bid *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	ask *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
}

func newAggregatedInstrument() *aggregatedInstrument {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}
	return &aggregatedInstrument{
		bid: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
		ask: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
	}
}

// AggregatedBookOption configures an AggregatedBook.
type AggregatedBookOption func(*AggregatedBook)

// WithTickSize sets the display price of one tick. Defaults to 1.
func WithTickSize(tickSize decimal.Decimal) AggregatedBookOption {
	return func(ab *AggregatedBook) {
		ab.tickSize = tickSize
	}
}

// NewAggregatedBook creates an empty AggregatedBook.
func NewAggregatedBook(opts ...AggregatedBookOption) *AggregatedBook {
	ab := &AggregatedBook{
		tickSize:    decimal.NewFromInt(1),
		instruments: make(map[string]*aggregatedInstrument),
		lastBest:    make(map[string]BestPriceEvent),
	}

	for _, opt := range opts {
		opt(ab)
	}

	return ab
}

// DisplayPrice converts a tick price to a display price.
func (ab *AggregatedBook) DisplayPrice(ticks uint64) decimal.Decimal {
	return ab.tickSize.Mul(decimal.NewFromUint64(ticks))
}

// OrderTraded satisfies NotificationSink. Depth bookkeeping happens in
// OrderFilled, which carries the resting side; the trade stream alone
// cannot tell a bid fill from an ask fill because the two id sequences
// are independent.
func (ab *AggregatedBook) OrderTraded(instrument string, orderID uint64, price uint64, quantity uint32) {
}

// BestPriceChanged records the latest top of book per instrument.
func (ab *AggregatedBook) BestPriceChanged(instrument string, bid TopOfBook, ask TopOfBook) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.lastBest[instrument] = BestPriceEvent{Instrument: instrument, Bid: bid, Ask: ask}
}

// OrderOpened adds the order's quantity to its price level.
func (ab *AggregatedBook) OrderOpened(instrument string, order Order) {
	ab.apply(instrument, order.Side, order.Price, int64(order.Quantity))
}

// OrderFilled subtracts the traded quantity from the maker's price level.
func (ab *AggregatedBook) OrderFilled(instrument string, maker Order, quantity uint32) {
	ab.apply(instrument, maker.Side, maker.Price, -int64(quantity))
}

// OrderCanceled subtracts the canceled remainder from its price level.
func (ab *AggregatedBook) OrderCanceled(instrument string, order Order) {
	ab.apply(instrument, order.Side, order.Price, -int64(order.Quantity))
}

func (ab *AggregatedBook) apply(instrument string, side Side, priceTicks uint64, diff int64) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	inst, ok := ab.instruments[instrument]
	if !ok {
		inst = newAggregatedInstrument()
		ab.instruments[instrument] = inst
	}

	levels := inst.bid
	if side == Sell {
		levels = inst.ask
	}

	price := ab.tickSize.Mul(decimal.NewFromUint64(priceTicks))

	current, _ := levels.Get(price)
	next := current.Add(decimal.NewFromInt(diff))

	if next.IsPositive() {
		levels.Set(price, next)
	} else {
		levels.Del(price)
	}
}

// Depth returns the aggregated quantity at a display price level.
// Returns zero when the instrument or level does not exist.
func (ab *AggregatedBook) Depth(instrument string, side Side, price decimal.Decimal) decimal.Decimal {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	inst, ok := ab.instruments[instrument]
	if !ok {
		return decimal.Zero
	}

	levels := inst.bid
	if side == Sell {
		levels = inst.ask
	}

	qty, _ := levels.Get(price)
	return qty
}

// Levels returns up to limit price levels for one side, best price first
// (highest bid, lowest ask).
func (ab *AggregatedBook) Levels(instrument string, side Side, limit int) []PriceLevelView {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	inst, ok := ab.instruments[instrument]
	if !ok {
		return nil
	}

	result := make([]PriceLevelView, 0, limit)

	if side == Buy {
		for it := inst.bid.Reverse(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, PriceLevelView{Price: it.Key(), Quantity: it.Value()})
		}
	} else {
		for it := inst.ask.Iterator(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, PriceLevelView{Price: it.Key(), Quantity: it.Value()})
		}
	}

	return result
}

// BestPrice returns the last top-of-book event observed for an
// instrument, if any.
func (ab *AggregatedBook) BestPrice(instrument string) (BestPriceEvent, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	ev, ok := ab.lastBest[instrument]
	return ev, ok
}
