package notify

import "sync"

// DefaultBufferCapacity is the number of commits a session keeps.
const DefaultBufferCapacity = 10

// RingBuffer is a bounded, thread-safe buffer of commit events ordered by
// CommittedAt. When full, the oldest event is dropped to make room.
type RingBuffer struct {
	mu       sync.Mutex
	events   []CommitEvent
	head     int // next write position
	tail     int // oldest event
	count    int
	capacity int

	dropped int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &RingBuffer{
		events:   make([]CommitEvent, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event in commit order, dropping the oldest if necessary.
// An event older than everything in a full buffer is itself the one
// dropped.
func (b *RingBuffer) Enqueue(event CommitEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		if event.CommittedAt.Before(b.events[b.tail].CommittedAt) {
			b.dropped++
			return
		}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.events[b.head] = event
	// Publishers race, so an event can arrive after a newer one.
	i := b.head
	for n := b.count; n > 0; n-- {
		prev := (i - 1 + b.capacity) % b.capacity
		if !b.events[prev].CommittedAt.After(b.events[i].CommittedAt) {
			break
		}
		b.events[prev], b.events[i] = b.events[i], b.events[prev]
		i = prev
	}
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n events, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []CommitEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	n = min(n, b.count)

	result := make([]CommitEvent, n)
	for i := range n {
		result[i] = b.events[b.tail]
		b.events[b.tail] = CommitEvent{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Drain removes and returns everything buffered.
func (b *RingBuffer) Drain() []CommitEvent {
	return b.DequeueBatch(b.capacity)
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events lost to overflow.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
