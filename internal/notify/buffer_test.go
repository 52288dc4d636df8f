package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "crimewatch/pkg/domain"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func eventAt(sec int) CommitEvent {
	return CommitEvent{ReportID: id.NewReportID(), CommittedAt: t0.Add(time.Duration(sec) * time.Second)}
}

func commitTimes(events []CommitEvent) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = int(e.CommittedAt.Sub(t0) / time.Second)
	}
	return out
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := NewRingBuffer(3)
	for sec := range 5 {
		b.Enqueue(eventAt(sec))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, int64(2), b.Dropped())
	assert.Equal(t, []int{2, 3, 4}, commitTimes(b.Drain()))
	assert.Zero(t, b.Len())
}

func TestRingBuffer_KeepsCommitOrder(t *testing.T) {
	b := NewRingBuffer(4)
	for _, sec := range []int{1, 3, 2, 5, 4} {
		b.Enqueue(eventAt(sec))
	}

	assert.Equal(t, []int{2, 3, 4, 5}, commitTimes(b.Drain()))
}

func TestRingBuffer_LateEventOlderThanFullBufferIsDropped(t *testing.T) {
	b := NewRingBuffer(2)
	b.Enqueue(eventAt(5))
	b.Enqueue(eventAt(6))
	b.Enqueue(eventAt(1))

	assert.Equal(t, int64(1), b.Dropped())
	assert.Equal(t, []int{5, 6}, commitTimes(b.Drain()))
}

func TestRingBuffer_DequeueBatchWrapsAround(t *testing.T) {
	b := NewRingBuffer(3)
	b.Enqueue(eventAt(1))
	b.Enqueue(eventAt(2))
	require.Len(t, b.DequeueBatch(1), 1)
	b.Enqueue(eventAt(3))
	b.Enqueue(eventAt(4))

	assert.Equal(t, []int{2, 3}, commitTimes(b.DequeueBatch(2)))
	assert.Equal(t, []int{4}, commitTimes(b.DequeueBatch(10)))
	assert.Nil(t, b.DequeueBatch(1))
}

func TestNewRingBuffer_DefaultCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	for sec := range 15 {
		b.Enqueue(eventAt(sec))
	}
	assert.Equal(t, DefaultBufferCapacity, b.Len())
}
