package match

import (
	"math/rand"
	"testing"
)

func BenchmarkQueueInsert(b *testing.B) {
	q := NewBuyerQueue()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		q.insertOrder(&Order{
			ID:       uint64(i + 1),
			Side:     Buy,
			Price:    uint64(rand.Intn(1000) + 1),
			Quantity: 10,
		})
	}
}

func BenchmarkQueueInsertRemove(b *testing.B) {
	q := NewBuyerQueue()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		q.insertOrder(&Order{
			ID:       id,
			Side:     Buy,
			Price:    uint64(rand.Intn(1000) + 1),
			Quantity: 10,
		})
		q.removeOrder(id)
	}
}

func BenchmarkQueuePeekHead(b *testing.B) {
	q := NewSellerQueue()
	for i := 0; i < 10000; i++ {
		q.insertOrder(&Order{
			ID:       uint64(i + 1),
			Side:     Sell,
			Price:    uint64(rand.Intn(1000) + 1),
			Quantity: 10,
		})
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		q.peekHeadOrder()
	}
}
