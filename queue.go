package match

import (
	"github.com/huandu/skiplist"
)

// priceLevel is one price level: an intrusive FIFO of resting orders plus
// a cached aggregate quantity. Invariant: totalQuantity equals the sum of
// member orders' remaining quantities, and count > 0 while the level is
// linked into the queue (empty levels are deleted, never kept).
type priceLevel struct {
	price         uint64
	totalQuantity uint64
	head          *Order
	tail          *Order
	count         int64
}

// queue holds one side of an instrument's book. The skiplist orders price
// levels by match priority (best price at the front); priceList gives O(1)
// access to a level by price; orders gives O(1) access to a resting order
// by id for cancellation. The orders map is derived data: the level's
// linked list owns the Order.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[uint64]*skiplist.Element
	orders      map[uint64]*Order
}

// NewBuyerQueue creates a new queue for buy orders (bids).
// The levels are sorted by price in descending order (highest price first).
func NewBuyerQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(uint64)
			p2, _ := rhs.(uint64)

			if p1 < p2 {
				return 1
			} else if p1 > p2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[uint64]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// NewSellerQueue creates a new queue for sell orders (asks).
// The levels are sorted by price in ascending order (lowest price first).
func NewSellerQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(uint64)
			p2, _ := rhs.(uint64)

			if p1 > p2 {
				return 1
			} else if p1 < p2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[uint64]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// order finds a resting order by its ID.
func (q *queue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder appends an order to the tail of its price level, creating
// the level if it does not exist yet. Appending at the tail preserves
// arrival-time priority.
func (q *queue) insertOrder(order *Order) {
	el, ok := q.priceList[order.Price]
	if ok {
		level, _ := el.Value.(*priceLevel)
		order.prev = level.tail
		order.next = nil
		if level.tail != nil {
			level.tail.next = order
		}
		level.tail = order
		if level.head == nil {
			level.head = order
		}

		level.totalQuantity += uint64(order.Quantity)
		level.count++
		q.orders[order.ID] = order
		q.totalOrders++
	} else {
		level := &priceLevel{
			price:         order.Price,
			head:          order,
			tail:          order,
			totalQuantity: uint64(order.Quantity),
			count:         1,
		}
		order.next = nil
		order.prev = nil

		q.orders[order.ID] = order

		el := q.depthList.Set(order.Price, level)
		q.priceList[order.Price] = el

		q.totalOrders++
		q.depths++
	}
}

// removeOrder unlinks an order from its price level and deletes the level
// if it becomes empty. Returns false when the order is not resting here.
func (q *queue) removeOrder(id uint64) bool {
	order, ok := q.orders[id]
	if !ok {
		return false
	}

	skipElement, ok := q.priceList[order.Price]
	if !ok {
		return false
	}
	level, _ := skipElement.Value.(*priceLevel)

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		level.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		level.tail = order.prev
	}

	// Clear pointers so a removed order cannot reach live list nodes
	order.next = nil
	order.prev = nil

	level.totalQuantity -= uint64(order.Quantity)
	level.count--
	delete(q.orders, id)
	q.totalOrders--

	if level.count == 0 {
		q.depthList.RemoveElement(skipElement)
		delete(q.priceList, order.Price)
		q.depths--
	}

	return true
}

// reduceOrder shaves quantity off a resting order in place, keeping its
// time priority and the level aggregate in sync. The caller guarantees
// qty < order.Quantity; reductions to zero go through removeOrder.
func (q *queue) reduceOrder(id uint64, qty uint32) {
	order, ok := q.orders[id]
	if !ok {
		return
	}

	skipElement, ok := q.priceList[order.Price]
	if ok {
		level, _ := skipElement.Value.(*priceLevel)
		level.totalQuantity -= uint64(qty)
		order.Quantity -= qty
	}
}

// peekHeadOrder returns the order at the front of the best price level
// without removing it. Returns nil when the side is empty.
func (q *queue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	level, _ := el.Value.(*priceLevel)
	return level.head
}

// top returns the best price and its aggregate quantity.
// An empty side reports the zero sentinel (price 0, quantity 0).
func (q *queue) top() TopOfBook {
	el := q.depthList.Front()
	if el == nil {
		return TopOfBook{}
	}

	level, _ := el.Value.(*priceLevel)
	return TopOfBook{Price: level.price, Quantity: level.totalQuantity}
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// toSnapshot serializes the queue into a slice of Order values.
// It iterates the skiplist (price levels) and then each level's linked
// list so the slice preserves price-time priority.
func (q *queue) toSnapshot() []Order {
	snapshots := make([]Order, 0, q.totalOrders)

	elem := q.depthList.Front()
	for elem != nil {
		level := elem.Value.(*priceLevel)

		order := level.head
		for order != nil {
			snapshots = append(snapshots, Order{
				ID:        order.ID,
				Side:      order.Side,
				Price:     order.Price,
				Quantity:  order.Quantity,
				Timestamp: order.Timestamp,
			})
			order = order.next
		}

		elem = elem.Next()
	}

	return snapshots
}

// depth returns the aggregated book depth up to the specified limit.
func (q *queue) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	el := q.depthList.Front()

	var i uint32 = 0
	for i < limit && el != nil {
		level, _ := el.Value.(*priceLevel)
		d := DepthItem{
			Price:    level.price,
			Quantity: level.totalQuantity,
			Count:    level.count,
		}

		result = append(result, &d)

		el = el.Next()
		i++
	}

	return result
}

// dump returns every level with its orders in time priority.
func (q *queue) dump() []DumpLevel {
	result := make([]DumpLevel, 0, q.depths)

	el := q.depthList.Front()
	for el != nil {
		level, _ := el.Value.(*priceLevel)

		dl := DumpLevel{
			Price:  level.price,
			Orders: make([]Order, 0, level.count),
		}

		order := level.head
		for order != nil {
			dl.Orders = append(dl.Orders, Order{
				ID:        order.ID,
				Side:      order.Side,
				Price:     order.Price,
				Quantity:  order.Quantity,
				Timestamp: order.Timestamp,
			})
			order = order.next
		}

		result = append(result, dl)
		el = el.Next()
	}

	return result
}
