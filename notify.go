package match

import "sync"

// NotificationSink consumes the engine's notifications. The engine invokes
// the callbacks synchronously, in the order the mutation produced them,
// before the originating AddOrder/RemoveOrder call returns.
//
// OrderTraded fires once per resting order touched by a match, against the
// resting order's id and at the resting order's price, quantity > 0.
// BestPriceChanged fires at most once per engine call, only when the
// top-of-book price or aggregate quantity actually changed on either side.
// An empty side reports the zero TopOfBook sentinel.
type NotificationSink interface {
	OrderTraded(instrument string, orderID uint64, price uint64, quantity uint32)
	BestPriceChanged(instrument string, bid TopOfBook, ask TopOfBook)
}

// BookListener is an optional extension a NotificationSink may implement
// to observe every liquidity change with full order context: an order
// resting on the book (opened), resting liquidity consumed by a match
// (filled), and an order leaving the book without trading (canceled).
// Unlike OrderTraded, the callbacks carry the resting order's side, which
// makes the stream sufficient to rebuild depth downstream; see
// AggregatedBook. OrderFilled reports maker with its remaining quantity
// after the fill (zero when fully consumed) and quantity as the traded
// amount.
type BookListener interface {
	OrderOpened(instrument string, order Order)
	OrderFilled(instrument string, maker Order, quantity uint32)
	OrderCanceled(instrument string, order Order)
}

// TradeEvent is the recorded form of an OrderTraded callback.
type TradeEvent struct {
	Instrument string `json:"instrument"`
	OrderID    uint64 `json:"order_id"`
	Price      uint64 `json:"price"`
	Quantity   uint32 `json:"quantity"`
}

// BestPriceEvent is the recorded form of a BestPriceChanged callback.
type BestPriceEvent struct {
	Instrument string    `json:"instrument"`
	Bid        TopOfBook `json:"bid"`
	Ask        TopOfBook `json:"ask"`
}

// FillEvent is the recorded form of an OrderFilled callback.
type FillEvent struct {
	Instrument string `json:"instrument"`
	Maker      Order  `json:"maker"`
	Quantity   uint32 `json:"quantity"`
}

// MemorySink stores notifications in memory, useful for testing.
type MemorySink struct {
	mu         sync.RWMutex
	trades     []TradeEvent
	bestPrices []BestPriceEvent
	opened     []Order
	fills      []FillEvent
	canceled   []Order
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// OrderTraded records a trade notification.
func (m *MemorySink) OrderTraded(instrument string, orderID uint64, price uint64, quantity uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, TradeEvent{
		Instrument: instrument,
		OrderID:    orderID,
		Price:      price,
		Quantity:   quantity,
	})
}

// BestPriceChanged records a top-of-book notification.
func (m *MemorySink) BestPriceChanged(instrument string, bid TopOfBook, ask TopOfBook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bestPrices = append(m.bestPrices, BestPriceEvent{Instrument: instrument, Bid: bid, Ask: ask})
}

// OrderOpened records an order resting on the book.
func (m *MemorySink) OrderOpened(instrument string, order Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, order)
}

// OrderFilled records resting liquidity consumed by a match.
func (m *MemorySink) OrderFilled(instrument string, maker Order, quantity uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, FillEvent{Instrument: instrument, Maker: maker, Quantity: quantity})
}

// OrderCanceled records an order leaving the book without trading.
func (m *MemorySink) OrderCanceled(instrument string, order Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, order)
}

// Trades returns a copy of all recorded trade events.
func (m *MemorySink) Trades() []TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]TradeEvent, len(m.trades))
	copy(trades, m.trades)
	return trades
}

// TradeCount returns the number of recorded trade events.
func (m *MemorySink) TradeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades)
}

// BestPrices returns a copy of all recorded top-of-book events.
func (m *MemorySink) BestPrices() []BestPriceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]BestPriceEvent, len(m.bestPrices))
	copy(events, m.bestPrices)
	return events
}

// LastBestPrice returns the most recent top-of-book event and whether one
// has been recorded at all.
func (m *MemorySink) LastBestPrice() (BestPriceEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.bestPrices) == 0 {
		return BestPriceEvent{}, false
	}
	return m.bestPrices[len(m.bestPrices)-1], true
}

// Opened returns a copy of all recorded open events.
func (m *MemorySink) Opened() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]Order, len(m.opened))
	copy(orders, m.opened)
	return orders
}

// Fills returns a copy of all recorded fill events.
func (m *MemorySink) Fills() []FillEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fills := make([]FillEvent, len(m.fills))
	copy(fills, m.fills)
	return fills
}

// Canceled returns a copy of all recorded cancel events.
func (m *MemorySink) Canceled() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]Order, len(m.canceled))
	copy(orders, m.canceled)
	return orders
}

// DiscardSink drops all notifications, useful for benchmarking.
type DiscardSink struct{}

// NewDiscardSink creates a new DiscardSink.
func NewDiscardSink() *DiscardSink {
	return &DiscardSink{}
}

// OrderTraded does nothing.
func (d *DiscardSink) OrderTraded(instrument string, orderID uint64, price uint64, quantity uint32) {
}

// BestPriceChanged does nothing.
func (d *DiscardSink) BestPriceChanged(instrument string, bid TopOfBook, ask TopOfBook) {
}
