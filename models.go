package match

// Side represents the order side (Buy/Sell).
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order represents a resting order in the order book.
// Price is expressed in ticks; Quantity is the remaining quantity.
// A resting order always has Quantity > 0: fully consumed orders are
// removed from the book, never retained at zero.
type Order struct {
	ID        uint64 `json:"id"`
	Side      Side   `json:"side"`
	Price     uint64 `json:"price"`
	Quantity  uint32 `json:"quantity"`
	Timestamp int64  `json:"timestamp"` // Unix nano, arrival time

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// clone returns a detached copy of the order, safe to hand to sinks.
func (o *Order) clone() Order {
	c := *o
	c.next = nil
	c.prev = nil
	return c
}

// TopOfBook is the best resting price and its aggregate quantity for one
// side. An empty side is the zero value: Price 0, Quantity 0.
type TopOfBook struct {
	Price    uint64
	Quantity uint64
}

// DepthItem is one aggregated price level in a depth query result.
type DepthItem struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
	Count    int64  `json:"count"`
}

// Depth is an aggregated view of both sides of a book, best price first.
type Depth struct {
	Asks []*DepthItem `json:"asks"`
	Bids []*DepthItem `json:"bids"`
}

// BookStats contains statistics about the order book queues.
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
}

// DumpLevel is one price level in a diagnostic book dump, orders in
// time priority.
type DumpLevel struct {
	Price  uint64  `json:"price"`
	Orders []Order `json:"orders"`
}

// BookDump is a read-only snapshot of all resting orders of one
// instrument, levels in match-priority order. Diagnostic only; it carries
// no correctness contract.
type BookDump struct {
	Instrument string      `json:"instrument"`
	Bids       []DumpLevel `json:"bids"`
	Asks       []DumpLevel `json:"asks"`
}
