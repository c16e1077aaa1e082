package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []int64
	count  atomic.Int64
}

func (h *recordingHandler) OnEvent(v int64) {
	h.mu.Lock()
	h.events = append(h.events, v)
	h.mu.Unlock()
	h.count.Add(1)
}

func (h *recordingHandler) Events() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.events))
	copy(out, h.events)
	return out
}

func TestRingBuffer_SingleProducer(t *testing.T) {
	handler := &recordingHandler{}
	rb := NewRingBuffer[int64](64, handler)
	rb.Start()

	const total = 1000
	for i := int64(0); i < total; i++ {
		rb.Publish(i)
	}

	assert.Eventually(t, func() bool {
		return handler.count.Load() == total
	}, time.Second, time.Millisecond)

	// Single producer: events arrive in publish order
	events := handler.Events()
	require.Len(t, events, total)
	for i := int64(0); i < total; i++ {
		assert.Equal(t, i, events[i])
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
}

func TestRingBuffer_MultiProducer(t *testing.T) {
	handler := &recordingHandler{}
	rb := NewRingBuffer[int64](128, handler)
	rb.Start()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perProducer; i++ {
				rb.Publish(base*perProducer + i)
			}
		}(int64(p))
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return handler.count.Load() == producers*perProducer
	}, 2*time.Second, time.Millisecond)

	// No event lost or duplicated
	seen := make(map[int64]bool)
	for _, v := range handler.Events() {
		assert.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, seen, producers*perProducer)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
}

func TestRingBuffer_ShutdownDrains(t *testing.T) {
	handler := &recordingHandler{}
	rb := NewRingBuffer[int64](64, handler)
	rb.Start()

	const total = 50
	for i := int64(0); i < total; i++ {
		rb.Publish(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(total), handler.count.Load())
	assert.Equal(t, int64(0), rb.PendingEvents())

	// Publishes after shutdown are dropped
	rb.Publish(999)
	assert.Equal(t, int64(total), handler.count.Load())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	// No Start: the consumer never runs, so pending events never drain
	rb := NewRingBuffer[int64](64, &recordingHandler{})
	rb.Publish(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rb.Shutdown(ctx), ErrRingBufferTimeout)
}

func TestRingBuffer_InvalidCapacity(t *testing.T) {
	assert.Panics(t, func() {
		NewRingBuffer[int64](3, &recordingHandler{})
	})
	assert.Panics(t, func() {
		NewRingBuffer[int64](0, &recordingHandler{})
	})
}

type countingHandler struct {
	count atomic.Int64
}

func (h *countingHandler) OnEvent(int64) {
	h.count.Add(1)
}

func BenchmarkRingBufferPublish(b *testing.B) {
	rb := NewRingBuffer[int64](1024, &countingHandler{})
	rb.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rb.Shutdown(ctx)
	}()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		var i int64
		for pb.Next() {
			i++
			rb.Publish(i)
		}
	})
}
