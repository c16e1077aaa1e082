package match

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// commandType represents the type of command sent to the order book.
type commandType int

const (
	cmdAddOrder commandType = iota
	cmdCancelOrder
	cmdDepth
	cmdStats
	cmdDump
	cmdSnapshot
)

type addOrderRequest struct {
	side     Side
	price    uint64
	quantity uint32
}

type cancelOrderRequest struct {
	side    Side
	orderID uint64
}

// command is the unified envelope sent to the order book loop.
// A single channel keeps command ordering deterministic.
type command struct {
	typ     commandType
	payload any
	resp    chan any
}

// OrderBook holds both sides of one instrument's book and processes all
// mutations for that instrument on a single goroutine (the Start loop).
// That serialization is what upholds FIFO time priority and the
// no-crossing invariant; different instruments run their loops in
// parallel with no shared state.
type OrderBook struct {
	instrument       string
	isShutdown       atomic.Bool
	bidQueue         *queue
	askQueue         *queue
	cmdChan          chan command
	done             chan struct{}
	shutdownComplete chan struct{}
	sink             NotificationSink
	listener         BookListener // non-nil iff sink implements BookListener

	// Per-side order-id counters. Only the Start loop touches them, so no
	// synchronization beyond the loop itself is needed. Bid and ask ids
	// are independent sequences: (side, id) is the unique key.
	bidOrderID uint64
	askOrderID uint64
}

// OrderBookOption configures an OrderBook.
type OrderBookOption func(*OrderBook)

// WithCommandBuffer overrides the command channel capacity.
func WithCommandBuffer(capacity int) OrderBookOption {
	return func(book *OrderBook) {
		book.cmdChan = make(chan command, capacity)
	}
}

// NewOrderBook creates a new order book for one instrument.
// Call Start on its own goroutine before submitting orders.
func NewOrderBook(instrument string, sink NotificationSink, opts ...OrderBookOption) *OrderBook {
	book := &OrderBook{
		instrument:       instrument,
		bidQueue:         NewBuyerQueue(),
		askQueue:         NewSellerQueue(),
		cmdChan:          make(chan command, cmdChanCapacity),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
		sink:             sink,
	}
	book.listener, _ = sink.(BookListener)

	for _, opt := range opts {
		opt(book)
	}

	return book
}

// Instrument returns the instrument symbol this book trades.
func (book *OrderBook) Instrument() string {
	return book.instrument
}

// AddOrder submits a limit order and blocks until the book has processed
// it, returning the allocated order id. The id is returned whether the
// order fully trades on arrival, partially trades, or rests untouched;
// if nothing remains resting the id is simply inert. All resulting
// notifications have been delivered to the sink when AddOrder returns.
//
// price must be a positive number of ticks and quantity a positive
// integer; invalid input fails before any state change.
func (book *OrderBook) AddOrder(side Side, price int64, quantity uint32) (uint64, error) {
	if book.isShutdown.Load() {
		return 0, ErrShutdown
	}

	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	if quantity == 0 {
		return 0, ErrInvalidQuantity
	}

	resp := make(chan any, 1)
	cmd := command{
		typ:     cmdAddOrder,
		payload: &addOrderRequest{side: side, price: uint64(price), quantity: quantity},
		resp:    resp,
	}

	select {
	case book.cmdChan <- cmd:
	case <-book.shutdownComplete:
		return 0, ErrShutdown
	}

	select {
	case res := <-resp:
		id, _ := res.(uint64)
		return id, nil
	case <-book.shutdownComplete:
		// The drain may still have serviced the command.
		select {
		case res := <-resp:
			id, _ := res.(uint64)
			return id, nil
		default:
			return 0, ErrShutdown
		}
	}
}

// RemoveOrder cancels a resting order and blocks until the book has
// processed the request. It returns false, not an error, when the order
// id is not resting on that side: already filled, already cancelled, or
// never existed.
func (book *OrderBook) RemoveOrder(side Side, orderID uint64) bool {
	if book.isShutdown.Load() {
		return false
	}

	resp := make(chan any, 1)
	cmd := command{
		typ:     cmdCancelOrder,
		payload: &cancelOrderRequest{side: side, orderID: orderID},
		resp:    resp,
	}

	select {
	case book.cmdChan <- cmd:
	case <-book.shutdownComplete:
		return false
	}

	select {
	case res := <-resp:
		ok, _ := res.(bool)
		return ok
	case <-book.shutdownComplete:
		select {
		case res := <-resp:
			ok, _ := res.(bool)
			return ok
		default:
			return false
		}
	}
}

// Depth returns the aggregated depth of the book up to limit levels per
// side, best price first.
func (book *OrderBook) Depth(limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	res, err := book.query(cmdDepth, limit)
	if err != nil {
		return nil, err
	}

	depth, _ := res.(*Depth)
	return depth, nil
}

// Stats returns usage statistics for the order book.
func (book *OrderBook) Stats() (*BookStats, error) {
	res, err := book.query(cmdStats, nil)
	if err != nil {
		return nil, err
	}

	stats, _ := res.(*BookStats)
	return stats, nil
}

// Dump returns every resting order of the book grouped by price level,
// levels in match-priority order, orders in time priority. Diagnostic
// convenience for inspection and tests; no correctness contract.
func (book *OrderBook) Dump() (*BookDump, error) {
	res, err := book.query(cmdDump, nil)
	if err != nil {
		return nil, err
	}

	dump, _ := res.(*BookDump)
	return dump, nil
}

// TakeSnapshot captures the current state of the order book.
// It is thread-safe and interacts with the order book loop via a channel.
func (book *OrderBook) TakeSnapshot() (*OrderBookSnapshot, error) {
	res, err := book.query(cmdSnapshot, nil)
	if err != nil {
		return nil, err
	}

	snap, _ := res.(*OrderBookSnapshot)
	return snap, nil
}

// query runs a read-only command through the loop and waits for the reply.
func (book *OrderBook) query(typ commandType, payload any) (any, error) {
	respChan := make(chan any, 1)

	select {
	case book.cmdChan <- command{typ: typ, payload: payload, resp: respChan}:
	case <-book.shutdownComplete:
		return nil, ErrShutdown
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}

	select {
	case res := <-respChan:
		return res, nil
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}

// Start runs the order book loop to process orders, cancellations, and
// queries. Returns nil when Shutdown is called and all pending commands
// are drained.
func (book *OrderBook) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-book.done:
			return book.drain()
		case cmd := <-book.cmdChan:
			book.processCommand(cmd)
		}
	}
}

// Shutdown signals the order book to stop accepting new commands and
// waits for all pending commands to be processed. Returns nil if the
// shutdown completed, or ctx.Err() if the context expired first.
func (book *OrderBook) Shutdown(ctx context.Context) error {
	if book.isShutdown.CompareAndSwap(false, true) {
		close(book.done)
	}

	select {
	case <-book.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
func (book *OrderBook) drain() error {
	defer close(book.shutdownComplete)

	for {
		select {
		case cmd := <-book.cmdChan:
			book.processCommand(cmd)
		default:
			return nil
		}
	}
}

func (book *OrderBook) processCommand(cmd command) {
	switch cmd.typ {
	case cmdAddOrder:
		if req, ok := cmd.payload.(*addOrderRequest); ok {
			id := book.addOrder(req)
			book.respond(cmd, id)
		}
	case cmdCancelOrder:
		if req, ok := cmd.payload.(*cancelOrderRequest); ok {
			book.respond(cmd, book.cancelOrder(req))
		}
	case cmdDepth:
		if limit, ok := cmd.payload.(uint32); ok {
			book.respond(cmd, &Depth{
				Asks: book.askQueue.depth(limit),
				Bids: book.bidQueue.depth(limit),
			})
		}
	case cmdStats:
		book.respond(cmd, &BookStats{
			AskDepthCount: book.askQueue.depthCount(),
			AskOrderCount: book.askQueue.orderCount(),
			BidDepthCount: book.bidQueue.depthCount(),
			BidOrderCount: book.bidQueue.orderCount(),
		})
	case cmdDump:
		book.respond(cmd, &BookDump{
			Instrument: book.instrument,
			Bids:       book.bidQueue.dump(),
			Asks:       book.askQueue.dump(),
		})
	case cmdSnapshot:
		book.respond(cmd, book.createSnapshot())
	}
}

func (book *OrderBook) respond(cmd command, result any) {
	if cmd.resp == nil {
		return
	}
	select {
	case cmd.resp <- result:
	default:
		// Non-blocking send; if no one is listening, drop it
	}
}

// addOrder runs the matching algorithm for an incoming limit order.
// Price-time priority: the walk consumes the opposite side best price
// first and, within a level, oldest order first. Trades execute at the
// resting order's price, so price improvement accrues to the resting
// side. Leftover quantity rests at the incoming limit price.
//
// The allocated order id is returned in every case.
func (book *OrderBook) addOrder(req *addOrderRequest) uint64 {
	var myQueue, targetQueue *queue
	var id uint64
	if req.side == Buy {
		myQueue = book.bidQueue
		targetQueue = book.askQueue
		book.bidOrderID++
		id = book.bidOrderID
	} else {
		myQueue = book.askQueue
		targetQueue = book.bidQueue
		book.askOrderID++
		id = book.askOrderID
	}

	preBid := book.bidQueue.top()
	preAsk := book.askQueue.top()

	remaining := req.quantity

	for remaining > 0 {
		tOrd := targetQueue.peekHeadOrder()
		if tOrd == nil {
			break
		}

		// Marketable check against the best opposite level
		if req.side == Buy && tOrd.Price > req.price ||
			req.side == Sell && tOrd.Price < req.price {
			break
		}

		if tOrd.Quantity <= remaining {
			// Full fill of the resting order
			traded := tOrd.Quantity
			maker := tOrd.clone()
			maker.Quantity = 0
			remaining -= traded
			targetQueue.removeOrder(maker.ID)
			book.sink.OrderTraded(book.instrument, maker.ID, maker.Price, traded)
			if book.listener != nil {
				book.listener.OrderFilled(book.instrument, maker, traded)
			}
		} else {
			// Partial fill: the resting order keeps its time priority
			traded := remaining
			targetQueue.reduceOrder(tOrd.ID, traded)
			book.sink.OrderTraded(book.instrument, tOrd.ID, tOrd.Price, traded)
			if book.listener != nil {
				book.listener.OrderFilled(book.instrument, tOrd.clone(), traded)
			}
			remaining = 0
		}
	}

	if remaining > 0 {
		order := &Order{
			ID:        id,
			Side:      req.side,
			Price:     req.price,
			Quantity:  remaining,
			Timestamp: time.Now().UnixNano(),
		}
		myQueue.insertOrder(order)

		if book.listener != nil {
			book.listener.OrderOpened(book.instrument, order.clone())
		}
	}

	book.emitBestPriceChange(preBid, preAsk)

	return id
}

// cancelOrder removes a resting order from the given side.
func (book *OrderBook) cancelOrder(req *cancelOrderRequest) bool {
	myQueue := book.bidQueue
	if req.side == Sell {
		myQueue = book.askQueue
	}

	order := myQueue.order(req.orderID)
	if order == nil {
		return false
	}

	preBid := book.bidQueue.top()
	preAsk := book.askQueue.top()

	canceled := order.clone()
	myQueue.removeOrder(req.orderID)

	if book.listener != nil {
		book.listener.OrderCanceled(book.instrument, canceled)
	}

	book.emitBestPriceChange(preBid, preAsk)

	return true
}

// emitBestPriceChange compares the current top of book on both sides with
// the pre-mutation values and notifies the sink at most once.
func (book *OrderBook) emitBestPriceChange(preBid, preAsk TopOfBook) {
	bid := book.bidQueue.top()
	ask := book.askQueue.top()

	if bid != preBid || ask != preAsk {
		book.sink.BestPriceChanged(book.instrument, bid, ask)
	}
}

// createSnapshot captures the full book state. It runs on the loop
// goroutine (via cmdSnapshot), so it observes a quiescent book.
func (book *OrderBook) createSnapshot() *OrderBookSnapshot {
	return &OrderBookSnapshot{
		Instrument: book.instrument,
		BidOrderID: book.bidOrderID,
		AskOrderID: book.askOrderID,
		Bids:       book.bidQueue.toSnapshot(),
		Asks:       book.askQueue.toSnapshot(),
	}
}

// Restore rebuilds the order book state from a snapshot. It must be
// called before Start; snapshot slices are priority-ordered, so inserting
// in slice order reproduces price-time priority exactly.
func (book *OrderBook) Restore(snap *OrderBookSnapshot) {
	book.bidOrderID = snap.BidOrderID
	book.askOrderID = snap.AskOrderID

	book.bidQueue = NewBuyerQueue()
	book.askQueue = NewSellerQueue()

	for i := range snap.Bids {
		order := snap.Bids[i]
		book.bidQueue.insertOrder(&order)
	}
	for i := range snap.Asks {
		order := snap.Asks[i]
		book.askQueue.insertOrder(&order)
	}
}
