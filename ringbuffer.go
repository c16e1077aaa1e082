package match

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
)

// ErrRingBufferTimeout is returned when a ring buffer shutdown times out.
var ErrRingBufferTimeout = errors.New("ringbuffer: shutdown timeout")

// EventHandler consumes events drained from a RingBuffer.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is an MPSC ring buffer: any number of producers may Publish,
// a single consumer goroutine drains in sequence order.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	// Ring buffer core
	buffer     []T
	bufferMask int64
	capacity   int64

	// published marks slots whose write is visible to the consumer
	published []int64

	handler EventHandler[T]

	isShutdown atomic.Bool
}

// NewRingBuffer creates a new MPSC RingBuffer.
// capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish writes an event into the ring buffer. Safe for concurrent
// producers; spins when the buffer is full until the consumer frees a slot.
func (rb *RingBuffer[T]) Publish(event T) {
	if rb.isShutdown.Load() {
		return
	}

	var nextSeq int64
	for {
		// Claim a sequence
		currentProducerSeq := rb.producerSequence.Load()
		nextSeq = currentProducerSeq + 1

		// The producer may not lap the consumer by more than one buffer
		wrapPoint := nextSeq - rb.capacity
		consumerSeq := rb.consumerSequence.Load()

		if wrapPoint > consumerSeq {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	// Write data to the claimed slot, then publish it to the consumer
	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event

	atomic.StoreInt64(&rb.published[index], nextSeq)
}

// Start launches the consumer worker.
func (rb *RingBuffer[T]) Start() {
	go rb.consumerLoop()
}

// Shutdown blocks new publishes and waits until the consumer has drained
// every claimed event, or the context expires.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ErrRingBufferTimeout
		default:
			if rb.ConsumerSequence() >= rb.ProducerSequence() {
				return nil
			}
			runtime.Gosched()
		}
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	nextConsumerSeq := rb.consumerSequence.Load() + 1

	for {
		availableSeq := rb.producerSequence.Load()

		if rb.isShutdown.Load() {
			rb.processRemainingEvents(nextConsumerSeq)
			return
		}

		processed := false
		for nextConsumerSeq <= availableSeq {
			index := nextConsumerSeq & rb.bufferMask

			// Spin until the slot's write is published
			for atomic.LoadInt64(&rb.published[index]) != nextConsumerSeq {
				runtime.Gosched()
			}

			event := rb.buffer[index]
			rb.handler.OnEvent(event)

			rb.consumerSequence.Store(nextConsumerSeq)
			nextConsumerSeq++
			processed = true
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

// processRemainingEvents drains claimed events during shutdown.
func (rb *RingBuffer[T]) processRemainingEvents(nextConsumerSeq int64) {
	availableSeq := rb.producerSequence.Load()

	for nextConsumerSeq <= availableSeq {
		index := nextConsumerSeq & rb.bufferMask

		for atomic.LoadInt64(&rb.published[index]) != nextConsumerSeq {
			runtime.Gosched()
		}

		event := rb.buffer[index]
		rb.handler.OnEvent(event)

		rb.consumerSequence.Store(nextConsumerSeq)
		nextConsumerSeq++
	}
}

// ConsumerSequence returns the current consumer sequence, for monitoring.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the current producer sequence, for monitoring.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// PendingEvents returns the number of claimed but unconsumed events.
func (rb *RingBuffer[T]) PendingEvents() int64 {
	producerSeq := rb.producerSequence.Load()
	consumerSeq := rb.consumerSequence.Load()
	return producerSeq - consumerSeq
}
