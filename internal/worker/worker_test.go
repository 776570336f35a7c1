package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeltas(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids, deltas := SumDeltas([]model.ResponseCountJob{
		{SessionID: a, Delta: 1},
		{SessionID: b, Delta: 1},
		{SessionID: a, Delta: 2},
	})
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.Equal(t, []int{3, 1}, deltas)

	ids, deltas = SumDeltas(nil)
	assert.Empty(t, ids)
	assert.Empty(t, deltas)
}

type fakeCounter struct {
	mu      sync.Mutex
	bulkErr error
	bulk    map[uuid.UUID]int
	single  map[uuid.UUID]int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{bulk: map[uuid.UUID]int{}, single: map[uuid.UUID]int{}}
}

func (f *fakeCounter) AddResponseCounts(_ context.Context, ids []uuid.UUID, deltas []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for i, id := range ids {
		f.bulk[id] += deltas[i]
	}
	return nil
}

func (f *fakeCounter) AddResponseCount(_ context.Context, id uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single[id] += delta
	return nil
}

func TestFlushSafe(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	batch := []model.ResponseCountJob{
		{SessionID: a, Delta: 1},
		{SessionID: a, Delta: 1},
		{SessionID: b, Delta: 1},
	}

	t.Run("bulk", func(t *testing.T) {
		counter := newFakeCounter()
		w := NewResponseCountWorker(counter, nil, zerolog.Nop())
		w.flushSafe(context.Background(), batch)
		assert.Equal(t, map[uuid.UUID]int{a: 2, b: 1}, counter.bulk)
		assert.Empty(t, counter.single)
	})

	t.Run("falls back to single updates", func(t *testing.T) {
		counter := newFakeCounter()
		counter.bulkErr = errors.New("deadlock detected")
		w := NewResponseCountWorker(counter, nil, zerolog.Nop())
		w.flushSafe(context.Background(), batch)
		assert.Empty(t, counter.bulk)
		assert.Equal(t, map[uuid.UUID]int{a: 2, b: 1}, counter.single)
	})

	t.Run("empty batch", func(t *testing.T) {
		counter := newFakeCounter()
		w := NewResponseCountWorker(counter, nil, zerolog.Nop())
		w.flushSafe(context.Background(), nil)
		assert.Empty(t, counter.bulk)
	})
}

type fakeEnder struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (f *fakeEnder) EndExpired(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func TestExpirySweeper_Sweep(t *testing.T) {
	ender := &fakeEnder{n: 2}
	s := NewExpirySweeper(ender, "@every 1s", zerolog.Nop())

	s.Sweep(context.Background())
	assert.Equal(t, 1, ender.calls)

	ender.err = errors.New("connection refused")
	s.Sweep(context.Background())
	assert.Equal(t, 2, ender.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Sweep(ctx)
	assert.Equal(t, 2, ender.calls, "a cancelled sweep does nothing")
}

func TestExpirySweeper_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := NewExpirySweeper(&fakeEnder{}, "not a schedule", zerolog.Nop()).Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a schedule")

	require.NoError(t, NewExpirySweeper(&fakeEnder{}, "@every 5s", zerolog.Nop()).Start(ctx))
}
