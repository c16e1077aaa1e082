package match

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func BenchmarkOrderBookAddOrder(b *testing.B) {
	book := NewOrderBook("BTC-USDT", NewDiscardSink())
	go func() {
		_ = book.Start()
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = book.Shutdown(ctx)
	}()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 0 {
			side = Sell
		}
		_, _ = book.AddOrder(side, int64(rand.Intn(1000)+1), 10)
	}
}

func BenchmarkOrderBookAddRemove(b *testing.B) {
	book := NewOrderBook("BTC-USDT", NewDiscardSink())
	go func() {
		_ = book.Start()
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = book.Shutdown(ctx)
	}()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		id, _ := book.AddOrder(Buy, int64(rand.Intn(100)+1), 10)
		book.RemoveOrder(Buy, id)
	}
}

func BenchmarkOrderBookMatching(b *testing.B) {
	book := NewOrderBook("BTC-USDT", NewDiscardSink())
	go func() {
		_ = book.Start()
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = book.Shutdown(ctx)
	}()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		// Every pair crosses at 100
		_, _ = book.AddOrder(Buy, 100, 10)
		_, _ = book.AddOrder(Sell, 100, 10)
	}
}
