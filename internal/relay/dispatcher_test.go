package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"propshare/internal/journal"
	"propshare/internal/ledger"
	"propshare/internal/platform/metrics"
	"propshare/internal/relay/mocks"
	"propshare/pkg/platform/circuit"
)

// recordingSink accepts records after failing the first failures attempts.
type recordingSink struct {
	name string

	mu       sync.Mutex
	failures int
	attempts int
	got      []uint64
	arrived  chan uint64
}

func newRecordingSink(name string, failures int) *recordingSink {
	return &recordingSink{name: name, failures: failures, arrived: make(chan uint64, 100)}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, rec journal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, rec.Sequence)
	s.arrived <- rec.Sequence
	return nil
}

func (s *recordingSink) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.got...)
}

func records(from, to uint64) []journal.Record {
	var out []journal.Record
	for seq := from; seq <= to; seq++ {
		out = append(out, journal.Record{Sequence: seq, Type: ledger.EventPauseChanged, AggregateID: "registry"})
	}
	return out
}

func startDispatcher(t *testing.T, sinks []Sink, opts ...Option) *Dispatcher {
	t.Helper()
	opts = append([]Option{
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	}, opts...)
	d := NewDispatcher(sinks, opts...)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
		<-errCh
	})
	return d
}

func waitFor(t *testing.T, ch <-chan uint64, want uint64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("sequence %d never arrived", want)
		}
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	a := newRecordingSink("a", 0)
	b := newRecordingSink("b", 0)
	d := startDispatcher(t, []Sink{a, b})

	require.NoError(t, d.Enqueue(records(1, 3)...))
	require.NoError(t, d.Enqueue(records(4, 5)...))

	waitFor(t, a.arrived, 5)
	waitFor(t, b.arrived, 5)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, a.sequences())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, b.sequences())
}

func TestDispatcher_RetriesFailingSinkWithoutBlockingOthers(t *testing.T) {
	flaky := newRecordingSink("flaky", 4)
	healthy := newRecordingSink("healthy", 0)
	d := startDispatcher(t, []Sink{flaky, healthy},
		WithBreaker(circuit.WithFailureThreshold(2), circuit.WithCooldown(2*time.Millisecond)),
	)

	require.NoError(t, d.Enqueue(records(1, 3)...))

	waitFor(t, healthy.arrived, 3)
	waitFor(t, flaky.arrived, 3)
	assert.Equal(t, []uint64{1, 2, 3}, flaky.sequences(), "retries must not reorder or skip")
	flaky.mu.Lock()
	defer flaky.mu.Unlock()
	assert.Equal(t, 7, flaky.attempts)
}

func TestDispatcher_CloseDrains(t *testing.T) {
	sink := newRecordingSink("drain", 2)
	d := NewDispatcher([]Sink{sink}, WithBackoff(time.Millisecond, time.Millisecond))
	require.NoError(t, d.Enqueue(records(1, 20)...))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.NoError(t, <-done)

	assert.Len(t, sink.sequences(), 20)
	assert.Equal(t, 0, d.Pending()["drain"])
	assert.ErrorIs(t, d.Enqueue(records(21, 21)...), ErrClosed)
}

func deadSink(t *testing.T) Sink {
	ctrl := gomock.NewController(t)
	dead := mocks.NewMockSink(ctrl)
	dead.EXPECT().Name().Return("dead").AnyTimes()
	dead.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")).AnyTimes()
	return dead
}

func waitRunning(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.started
	}, time.Second, time.Millisecond)
}

func TestDispatcher_CloseTimesOutOnDeadSink(t *testing.T) {
	d := NewDispatcher([]Sink{deadSink(t)}, WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, d.Enqueue(records(1, 1)...))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	waitRunning(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	require.NoError(t, <-done)
	assert.Equal(t, 1, d.Pending()["dead"])
}

func TestDispatcher_CloseBeforeRunOnDeadSink(t *testing.T) {
	d := NewDispatcher([]Sink{deadSink(t)}, WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, d.Enqueue(records(1, 1)...))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded, "a queued record was never delivered")

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run after an expired Close kept retrying; pending=%v", d.Pending())
	}
	assert.Equal(t, 1, d.Pending()["dead"])
}

func TestDispatcher_CloseBeforeRunDrainsOnceRunStarts(t *testing.T) {
	sink := newRecordingSink("late", 0)
	d := NewDispatcher([]Sink{sink})
	require.NoError(t, d.Enqueue(records(1, 3)...))

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		closed <- d.Close(ctx)
	}()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.closed
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Enqueue(records(4, 4)...), ErrClosed)

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, <-closed)
	assert.Equal(t, []uint64{1, 2, 3}, sink.sequences())
}

func TestDispatcher_CloseAfterRunStoppedReportsUndelivered(t *testing.T) {
	d := NewDispatcher([]Sink{deadSink(t)}, WithBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, d.Enqueue(records(1, 2)...))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	waitRunning(t, d)
	cancel()
	require.NoError(t, <-done)

	err := d.Close(context.Background())
	require.ErrorIs(t, err, ErrUndelivered)
	assert.Contains(t, err.Error(), "2 records")
}

func TestDispatcher_CloseIdleWithoutRun(t *testing.T) {
	d := NewDispatcher([]Sink{newRecordingSink("idle", 0)})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Run(context.Background()))
}

func TestDispatcher_RunTwice(t *testing.T) {
	d := startDispatcher(t, nil)
	time.Sleep(5 * time.Millisecond)
	assert.Error(t, d.Run(context.Background()))
}

func TestCatchUp(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	st := newMemoryStore(t, 5)

	sink := mocks.NewMockSequencedSink(ctrl)
	sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(3), nil)
	gomock.InOrder(
		sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(r journal.Record) bool { return r.Sequence == 4 })).Return(nil),
		sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(r journal.Record) bool { return r.Sequence == 5 })).Return(nil),
	)

	n, err := CatchUp(ctx, st, sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCatchUpStopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := newMemoryStore(t, 2)

	sink := mocks.NewMockSequencedSink(ctrl)
	sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(0), nil)
	sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

	n, err := CatchUp(context.Background(), st, sink)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestCatchUp_SinkAheadOfJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuildable sink is reset and replayed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := newMemoryStore(t, 2)

		sink := mocks.NewMockRebuildableSink(ctrl)
		sink.EXPECT().Name().Return("projection").AnyTimes()
		sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(9), nil)
		gomock.InOrder(
			sink.EXPECT().Reset(gomock.Any()).Return(nil),
			sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(r journal.Record) bool { return r.Sequence == 1 })).Return(nil),
			sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(r journal.Record) bool { return r.Sequence == 2 })).Return(nil),
		)

		n, err := CatchUp(ctx, st, sink)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("plain sink fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := newMemoryStore(t, 2)

		sink := mocks.NewMockSequencedSink(ctrl)
		sink.EXPECT().Name().Return("projection").AnyTimes()
		sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(9), nil)

		n, err := CatchUp(ctx, st, sink)
		require.ErrorIs(t, err, ErrSinkAhead)
		assert.Equal(t, 0, n)
	})

	t.Run("reset failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := newMemoryStore(t, 2)

		sink := mocks.NewMockRebuildableSink(ctrl)
		sink.EXPECT().Name().Return("projection").AnyTimes()
		sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(9), nil)
		sink.EXPECT().Reset(gomock.Any()).Return(errors.New("redis down"))

		_, err := CatchUp(ctx, st, sink)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
	})
}

func TestCatchUp_SinkFromAnotherJournal(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore(t, 4)
	for i := range st.recs {
		st.recs[i].EventID = uuid.New()
	}

	t.Run("origin mismatch rebuilds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sink := mocks.NewMockRebuildableSink(ctrl)
		sink.EXPECT().Name().Return("projection").AnyTimes()
		sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(3), nil)
		sink.EXPECT().Origin(gomock.Any()).Return(uuid.NewString(), nil)
		sink.EXPECT().Reset(gomock.Any()).Return(nil)
		sink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil).Times(4)

		n, err := CatchUp(ctx, st, sink)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("matching origin resumes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sink := mocks.NewMockRebuildableSink(ctrl)
		sink.EXPECT().LastSequence(gomock.Any()).Return(uint64(3), nil)
		sink.EXPECT().Origin(gomock.Any()).Return(st.recs[0].EventID.String(), nil)
		sink.EXPECT().Deliver(gomock.Any(), gomock.Cond(func(r journal.Record) bool { return r.Sequence == 4 })).Return(nil)

		n, err := CatchUp(ctx, st, sink)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

type sliceStore struct{ recs []journal.Record }

func newMemoryStore(t *testing.T, n uint64) *sliceStore {
	t.Helper()
	return &sliceStore{recs: records(1, n)}
}

func (s *sliceStore) Append(context.Context, ...journal.Record) error { return nil }

func (s *sliceStore) ListAfter(_ context.Context, after uint64, limit int) ([]journal.Record, error) {
	if after >= uint64(len(s.recs)) {
		return nil, nil
	}
	out := s.recs[after:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *sliceStore) LastSequence(context.Context) (uint64, error) { return uint64(len(s.recs)), nil }
