package base

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Outbox is an unbounded multi-producer single-consumer queue.
// Every connection owns one: handlers of any connection push messages, a single
// writer goroutine drains Recv() and writes them to the wire. Push never blocks,
// so a slow reader can not stall the goroutine that broadcasts to it.
//
// Items pushed by one goroutine are received in push order. Items of
// concurrent producers interleave in the order their pushes completed.
type Outbox[T interface{}] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// NewOutbox creates an empty outbox and starts its forwarding goroutine
func NewOutbox[T interface{}]() *Outbox[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &Outbox[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push appends an item. It returns false if the value is nil or the outbox is closed.
// Safe for concurrent use.
func (q *Outbox[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// tail may already have been advanced by another producer
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin at low contention, yield at high contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. The signal is sent while holding mu so it can not
// fall between the consumer's emptiness check and its Wait.
func (q *Outbox[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves items from the linked list to the output channel
func (q *Outbox[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the sentinel must not keep the value alive
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the consumer reads from.
// It is closed once the outbox is closed and all items have been delivered.
func (q *Outbox[T]) Recv() <-chan *T {
	return q.out
}

// Close prevents further pushes. Items already queued are still delivered.
func (q *Outbox[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the outbox is closed.
func (q *Outbox[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of queued items. O(n), meant for metrics and debugging.
func (q *Outbox[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			return count
		}
		count++
		current = next
	}
}
