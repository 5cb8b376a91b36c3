package federation

import "titan-aas/internal/model"

const defaultChangeQueueSize = 10000

// ChangeQueue is a bounded in-memory FIFO of Change records awaiting
// replay to peers during push sync. Once full, the oldest entry is
// dropped to make room — durability of the federation change log is not
// this queue's job; it only needs to cover the gap between two sync runs.
type ChangeQueue struct {
	capacity int
	entries  []model.Change
}

// NewChangeQueue builds a queue holding at most capacity entries.
func NewChangeQueue(capacity int) *ChangeQueue {
	if capacity <= 0 {
		capacity = defaultChangeQueueSize
	}
	return &ChangeQueue{capacity: capacity}
}

// Track appends a change record, dropping the oldest entry if the queue is
// already at capacity.
func (q *ChangeQueue) Track(change model.Change) {
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, change)
}

// Since returns every tracked change with a Timestamp strictly after
// cutoff, in the order they were tracked. A nil cutoff returns everything.
func (q *ChangeQueue) Since(cutoff *model.Change) []model.Change {
	if cutoff == nil {
		out := make([]model.Change, len(q.entries))
		copy(out, q.entries)
		return out
	}
	var out []model.Change
	for _, c := range q.entries {
		if c.Timestamp.After(cutoff.Timestamp) {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of currently tracked changes.
func (q *ChangeQueue) Len() int {
	return len(q.entries)
}
