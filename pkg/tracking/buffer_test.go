package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(i int) Observation {
	return Observation{Left: Point{X: float64(i)}, Right: Point{Y: float64(i)}}
}

func TestHistoryBuffer_PushWithinCapacity(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(5)
	for i := 0; i < 3; i++ {
		b.Push(obs(i))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 5, b.Cap())
	assert.Equal(t, []Observation{obs(0), obs(1), obs(2)}, b.Snapshot())
}

func TestHistoryBuffer_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(4)
	for i := 0; i < 11; i++ {
		b.Push(obs(i))
		require.LessOrEqual(t, b.Len(), b.Cap())
	}

	assert.Equal(t, []Observation{obs(7), obs(8), obs(9), obs(10)}, b.Snapshot())
}

func TestHistoryBuffer_DefaultCapacity(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(0)
	for i := 0; i < 500; i++ {
		b.Push(obs(i))
	}

	assert.Equal(t, DefaultHistFrames, b.Len())
	snap := b.Snapshot()
	assert.Equal(t, obs(500-DefaultHistFrames), snap[0])
	assert.Equal(t, obs(499), snap[len(snap)-1])
}

func TestHistoryBuffer_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(8)
	for i := 0; i < 12; i++ {
		b.Push(obs(i))
	}

	b.Clear()
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())

	b.Push(obs(42))
	assert.Equal(t, []Observation{obs(42)}, b.Snapshot())
}

func TestHistoryBuffer_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(3)
	b.Push(obs(1))
	snap := b.Snapshot()
	snap[0] = obs(99)

	assert.Equal(t, obs(1), b.Snapshot()[0])
}

func TestHistoryBuffer_ClearThenShortHistoryNeverFlags(t *testing.T) {
	t.Parallel()

	b := NewHistoryBuffer(DefaultHistFrames)
	for i := 0; i < 40; i++ {
		b.Push(Observation{Left: Point{X: float64(i * 10)}})
	}
	b.Clear()

	for i := 0; i < MinHistory-1; i++ {
		b.Push(Observation{Left: Point{X: float64(i * 50)}})
		isLazy, l, r := Classify(b.Snapshot(), DefaultMovePxMin, DefaultRatioThresh)
		assert.False(t, isLazy)
		assert.Zero(t, l)
		assert.Zero(t, r)
	}
}

func BenchmarkHistoryBufferPush(b *testing.B) {
	buf := NewHistoryBuffer(DefaultHistFrames)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(obs(i))
	}
}
