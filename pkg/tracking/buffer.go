package tracking

// HistoryBuffer is a bounded FIFO of observations. Once full, each Push
// evicts the oldest entry.
type HistoryBuffer struct {
	values []Observation
	size   int
	start  int
	count  int
}

func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistFrames
	}
	return &HistoryBuffer{
		values: make([]Observation, capacity),
		size:   capacity,
	}
}

// Push appends o, dropping the oldest observation when the buffer is full.
func (b *HistoryBuffer) Push(o Observation) {
	if b.count < b.size {
		b.values[(b.start+b.count)%b.size] = o
		b.count++
		return
	}
	b.values[b.start] = o
	b.start = (b.start + 1) % b.size
}

// Clear empties the buffer.
func (b *HistoryBuffer) Clear() {
	b.start = 0
	b.count = 0
}

// Snapshot returns the buffered observations oldest first. The returned
// slice is a copy.
func (b *HistoryBuffer) Snapshot() []Observation {
	out := make([]Observation, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.values[(b.start+i)%b.size]
	}
	return out
}

func (b *HistoryBuffer) Len() int {
	return b.count
}

func (b *HistoryBuffer) Cap() int {
	return b.size
}
