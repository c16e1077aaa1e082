package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuyerQueue(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: 1, Side: Buy, Price: 10, Quantity: 10})
	q.insertOrder(&Order{ID: 2, Side: Buy, Price: 20, Quantity: 10})
	q.insertOrder(&Order{ID: 3, Side: Buy, Price: 30, Quantity: 10})
	q.insertOrder(&Order{ID: 4, Side: Buy, Price: 20, Quantity: 100})

	assert.Equal(t, int64(4), q.orderCount())
	assert.Equal(t, int64(3), q.depthCount())

	// Highest price first
	head := q.peekHeadOrder()
	assert.Equal(t, uint64(3), head.ID)
	assert.Equal(t, uint64(30), head.Price)

	top := q.top()
	assert.Equal(t, uint64(30), top.Price)
	assert.Equal(t, uint64(10), top.Quantity)

	// Removing the best level exposes the next one with its aggregate
	assert.True(t, q.removeOrder(3))
	top = q.top()
	assert.Equal(t, uint64(20), top.Price)
	assert.Equal(t, uint64(110), top.Quantity)
	assert.Equal(t, int64(2), q.depthCount())

	// Same level, FIFO order
	head = q.peekHeadOrder()
	assert.Equal(t, uint64(2), head.ID)
}

func TestSellerQueue(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(&Order{ID: 1, Side: Sell, Price: 30, Quantity: 5})
	q.insertOrder(&Order{ID: 2, Side: Sell, Price: 10, Quantity: 5})
	q.insertOrder(&Order{ID: 3, Side: Sell, Price: 20, Quantity: 5})

	// Lowest price first
	head := q.peekHeadOrder()
	assert.Equal(t, uint64(2), head.ID)
	assert.Equal(t, uint64(10), head.Price)

	assert.True(t, q.removeOrder(2))
	head = q.peekHeadOrder()
	assert.Equal(t, uint64(3), head.ID)
	assert.Equal(t, uint64(20), head.Price)
}

func TestQueue_RemoveOrder(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: 1, Side: Buy, Price: 10, Quantity: 7})
	q.insertOrder(&Order{ID: 2, Side: Buy, Price: 10, Quantity: 8})
	q.insertOrder(&Order{ID: 3, Side: Buy, Price: 10, Quantity: 9})

	// Remove from the middle keeps the FIFO chain intact
	assert.True(t, q.removeOrder(2))
	assert.Equal(t, int64(2), q.orderCount())
	assert.Equal(t, int64(1), q.depthCount())
	assert.Nil(t, q.order(2))

	top := q.top()
	assert.Equal(t, uint64(16), top.Quantity)

	head := q.peekHeadOrder()
	assert.Equal(t, uint64(1), head.ID)
	assert.Equal(t, uint64(3), head.next.ID)

	// Unknown id
	assert.False(t, q.removeOrder(42))

	// Draining the level deletes it
	assert.True(t, q.removeOrder(1))
	assert.True(t, q.removeOrder(3))
	assert.Equal(t, int64(0), q.orderCount())
	assert.Equal(t, int64(0), q.depthCount())
	assert.Nil(t, q.peekHeadOrder())
	assert.Equal(t, TopOfBook{}, q.top())
}

func TestQueue_ReduceOrder(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(&Order{ID: 1, Side: Sell, Price: 10, Quantity: 50})
	q.insertOrder(&Order{ID: 2, Side: Sell, Price: 10, Quantity: 30})

	q.reduceOrder(1, 20)

	// Quantity shrinks in place, priority does not change
	head := q.peekHeadOrder()
	assert.Equal(t, uint64(1), head.ID)
	assert.Equal(t, uint32(30), head.Quantity)

	top := q.top()
	assert.Equal(t, uint64(60), top.Quantity)
	assert.Equal(t, int64(2), q.orderCount())
}

func TestQueue_Depth(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: 1, Side: Buy, Price: 10, Quantity: 1})
	q.insertOrder(&Order{ID: 2, Side: Buy, Price: 20, Quantity: 2})
	q.insertOrder(&Order{ID: 3, Side: Buy, Price: 30, Quantity: 3})
	q.insertOrder(&Order{ID: 4, Side: Buy, Price: 30, Quantity: 4})

	depth := q.depth(2)
	assert.Len(t, depth, 2)
	assert.Equal(t, uint64(30), depth[0].Price)
	assert.Equal(t, uint64(7), depth[0].Quantity)
	assert.Equal(t, int64(2), depth[0].Count)
	assert.Equal(t, uint64(20), depth[1].Price)

	// Limit larger than the book
	depth = q.depth(10)
	assert.Len(t, depth, 3)
}

func TestQueue_ToSnapshot(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(&Order{ID: 1, Side: Sell, Price: 20, Quantity: 5, Timestamp: 100})
	q.insertOrder(&Order{ID: 2, Side: Sell, Price: 10, Quantity: 5, Timestamp: 200})
	q.insertOrder(&Order{ID: 3, Side: Sell, Price: 10, Quantity: 5, Timestamp: 300})

	snap := q.toSnapshot()
	assert.Len(t, snap, 3)

	// Priority order: best price first, then arrival order within a level
	assert.Equal(t, uint64(2), snap[0].ID)
	assert.Equal(t, uint64(3), snap[1].ID)
	assert.Equal(t, uint64(1), snap[2].ID)

	// Rebuilding from the snapshot reproduces the same book
	q2 := NewSellerQueue()
	for i := range snap {
		order := snap[i]
		q2.insertOrder(&order)
	}
	assert.Equal(t, q.orderCount(), q2.orderCount())
	assert.Equal(t, q.depthCount(), q2.depthCount())
	assert.Equal(t, q.top(), q2.top())
	assert.Equal(t, uint64(2), q2.peekHeadOrder().ID)
}

func TestQueue_Dump(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(&Order{ID: 1, Side: Buy, Price: 10, Quantity: 1})
	q.insertOrder(&Order{ID: 2, Side: Buy, Price: 20, Quantity: 2})
	q.insertOrder(&Order{ID: 3, Side: Buy, Price: 20, Quantity: 3})

	dump := q.dump()
	assert.Len(t, dump, 2)
	assert.Equal(t, uint64(20), dump[0].Price)
	assert.Len(t, dump[0].Orders, 2)
	assert.Equal(t, uint64(2), dump[0].Orders[0].ID)
	assert.Equal(t, uint64(3), dump[0].Orders[1].ID)
	assert.Equal(t, uint64(10), dump[1].Price)
}
