package match

import "context"

type sinkEventKind int8

const (
	sinkEventTrade sinkEventKind = iota + 1
	sinkEventBestPrice
	sinkEventOpened
	sinkEventFilled
	sinkEventCanceled
)

type sinkEvent struct {
	kind       sinkEventKind
	instrument string
	order      Order
	quantity   uint32
	bid        TopOfBook
	ask        TopOfBook
}

// AsyncSink decorates a NotificationSink so that sink work runs on a
// dedicated consumer goroutine instead of the matching goroutine. Events
// are carried over an MPSC ring buffer and delivered to the inner sink in
// publish order, so the per-instrument ordering guarantee is preserved.
//
// Use this when the real consumer is slow (network publication, disk);
// the engine's own callbacks then only pay for a ring buffer write.
type AsyncSink struct {
	inner    NotificationSink
	listener BookListener // non-nil iff inner implements BookListener
	ring     *RingBuffer[sinkEvent]
}

// NewAsyncSink wraps inner and starts the consumer goroutine.
// capacity must be a power of 2.
func NewAsyncSink(inner NotificationSink, capacity int64) *AsyncSink {
	s := &AsyncSink{inner: inner}
	s.listener, _ = inner.(BookListener)
	s.ring = NewRingBuffer[sinkEvent](capacity, s)
	s.ring.Start()
	return s
}

// OnEvent dispatches a drained event to the inner sink.
// It runs on the ring buffer's consumer goroutine.
func (s *AsyncSink) OnEvent(ev sinkEvent) {
	switch ev.kind {
	case sinkEventTrade:
		s.inner.OrderTraded(ev.instrument, ev.order.ID, ev.order.Price, ev.order.Quantity)
	case sinkEventBestPrice:
		s.inner.BestPriceChanged(ev.instrument, ev.bid, ev.ask)
	case sinkEventOpened:
		if s.listener != nil {
			s.listener.OrderOpened(ev.instrument, ev.order)
		}
	case sinkEventFilled:
		if s.listener != nil {
			s.listener.OrderFilled(ev.instrument, ev.order, ev.quantity)
		}
	case sinkEventCanceled:
		if s.listener != nil {
			s.listener.OrderCanceled(ev.instrument, ev.order)
		}
	}
}

// OrderTraded enqueues a trade notification.
func (s *AsyncSink) OrderTraded(instrument string, orderID uint64, price uint64, quantity uint32) {
	s.ring.Publish(sinkEvent{
		kind:       sinkEventTrade,
		instrument: instrument,
		order:      Order{ID: orderID, Price: price, Quantity: quantity},
	})
}

// BestPriceChanged enqueues a top-of-book notification.
func (s *AsyncSink) BestPriceChanged(instrument string, bid TopOfBook, ask TopOfBook) {
	s.ring.Publish(sinkEvent{kind: sinkEventBestPrice, instrument: instrument, bid: bid, ask: ask})
}

// OrderOpened enqueues an open notification.
func (s *AsyncSink) OrderOpened(instrument string, order Order) {
	s.ring.Publish(sinkEvent{kind: sinkEventOpened, instrument: instrument, order: order})
}

// OrderFilled enqueues a fill notification.
func (s *AsyncSink) OrderFilled(instrument string, maker Order, quantity uint32) {
	s.ring.Publish(sinkEvent{kind: sinkEventFilled, instrument: instrument, order: maker, quantity: quantity})
}

// OrderCanceled enqueues a cancel notification.
func (s *AsyncSink) OrderCanceled(instrument string, order Order) {
	s.ring.Publish(sinkEvent{kind: sinkEventCanceled, instrument: instrument, order: order})
}

// Pending returns the number of undelivered events.
func (s *AsyncSink) Pending() int64 {
	return s.ring.PendingEvents()
}

// Shutdown stops intake and waits for the consumer to drain, or until the
// context expires.
func (s *AsyncSink) Shutdown(ctx context.Context) error {
	return s.ring.Shutdown(ctx)
}
