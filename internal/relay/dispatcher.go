package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"propshare/internal/journal"
	"propshare/internal/platform/metrics"
	"propshare/pkg/platform/circuit"
)

var (
	ErrClosed = errors.New("relay: dispatcher closed")
	// ErrUndelivered is returned by Close when Run stopped with records queued.
	ErrUndelivered = errors.New("relay: records left undelivered")
)

// Dispatcher fans records out to per-sink lanes.
type Dispatcher struct {
	lanes  []*lane
	logger *slog.Logger
	m      *metrics.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration
	highWater      int
	breakerOpts    []circuit.Option

	// abort cancels delivery for the current or any later Run once a Close
	// deadline has passed.
	abort  context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	stop    chan struct{}
	done    chan struct{}
	started bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.m = m
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(initial, max time.Duration) Option {
	return func(d *Dispatcher) {
		if initial > 0 {
			d.initialBackoff = initial
		}
		if max > 0 {
			d.maxBackoff = max
		}
	}
}

// WithHighWater logs a warning whenever a lane grows past n queued records.
func WithHighWater(n int) Option {
	return func(d *Dispatcher) {
		d.highWater = n
	}
}

// WithBreaker configures the per-sink circuit breakers.
func WithBreaker(opts ...circuit.Option) Option {
	return func(d *Dispatcher) {
		d.breakerOpts = append(d.breakerOpts, opts...)
	}
}

func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		initialBackoff: 100 * time.Millisecond,
		maxBackoff:     30 * time.Second,
		highWater:      10_000,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	d.abort, d.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	for _, s := range sinks {
		d.lanes = append(d.lanes, &lane{
			sink:    s,
			breaker: circuit.New(s.Name(), d.breakerOpts...),
			notify:  make(chan struct{}, 1),
		})
	}
	return d
}

// Enqueue hands committed records to every lane. It never blocks on I/O, so
// the registry can call it while holding its writer lock.
func (d *Dispatcher) Enqueue(records ...journal.Record) error {
	if len(records) == 0 {
		return nil
	}
	// Held across the pushes so Close never observes a half-enqueued batch.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	for _, l := range d.lanes {
		depth := l.push(records)
		d.m.SetQueueDepth(l.sink.Name(), depth)
		if d.highWater > 0 && depth > d.highWater && depth-len(records) <= d.highWater {
			d.logger.Warn("relay lane above high water mark",
				"sink", l.sink.Name(),
				"depth", depth,
				"high_water", d.highWater,
			)
		}
	}
	return nil
}

// Pending returns the number of undelivered records per sink.
func (d *Dispatcher) Pending() map[string]int {
	out := make(map[string]int, len(d.lanes))
	for _, l := range d.lanes {
		out[l.sink.Name()] = l.len()
	}
	return out
}

// Run delivers until Close drains the lanes or ctx is cancelled. A Run that
// starts after Close still drains whatever is queued, bounded by the deadline
// Close was given.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("relay: dispatcher already running")
	}
	d.started = true
	d.mu.Unlock()
	defer close(d.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAbort := context.AfterFunc(d.abort, cancel)
	defer stopAbort()

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range d.lanes {
		g.Go(func() error {
			return d.runLane(ctx, l)
		})
	}
	return g.Wait()
}

// Close stops accepting records and waits for the lanes to drain, whether
// Run is already going or starts later. When ctx expires first, delivery is
// cancelled and the undelivered records are dropped from memory; they remain
// in the journal. Close reports success only when nothing is left queued.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.stop)
	started := d.started
	d.mu.Unlock()

	// Enqueue is refused from here on, so an empty, idle dispatcher stays empty.
	if !started && d.pending() == 0 {
		return nil
	}
	select {
	case <-d.done:
		if n := d.pending(); n > 0 {
			return fmt.Errorf("%w: %d records undelivered", ErrUndelivered, n)
		}
		return nil
	case <-ctx.Done():
	}
	d.cancel()

	d.mu.Lock()
	started = d.started
	d.mu.Unlock()
	if started {
		<-d.done
	} else if d.pending() == 0 {
		return nil
	}
	return ctx.Err()
}

func (d *Dispatcher) pending() int {
	n := 0
	for _, l := range d.lanes {
		n += l.len()
	}
	return n
}

func (d *Dispatcher) runLane(ctx context.Context, l *lane) error {
	for {
		rec, ok := l.peek()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-d.stop:
				if l.len() == 0 {
					return nil
				}
			case <-l.notify:
			}
			continue
		}
		if err := d.deliver(ctx, l, rec); err != nil {
			return nil
		}
		d.m.SetQueueDepth(l.sink.Name(), l.pop())
	}
}

// deliver retries one record until it is accepted or ctx ends.
func (d *Dispatcher) deliver(ctx context.Context, l *lane, rec journal.Record) error {
	name := l.sink.Name()
	backoff := d.initialBackoff
	for attempt := 1; ; attempt++ {
		if l.breaker.Allow() {
			err := l.sink.Deliver(ctx, rec)
			if err == nil {
				if _, change := l.breaker.RecordSuccess(); change.Closed {
					d.logger.Info("relay sink recovered", "sink", name)
					d.m.SetBreakerOpen(name, false)
				}
				d.m.IncrementDelivered(name)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.m.IncrementDeliveryFailure(name)
			_, change := l.breaker.RecordFailure()
			if change.Opened {
				d.m.SetBreakerOpen(name, true)
			}
			d.logger.Warn("relay delivery failed",
				"sink", name,
				"sequence", rec.Sequence,
				"event_type", string(rec.Type),
				"attempt", attempt,
				"breaker_open", l.breaker.IsOpen(),
				"error", err,
			)
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, d.maxBackoff)
	}
}

type lane struct {
	sink    Sink
	breaker *circuit.Breaker
	notify  chan struct{}

	mu    sync.Mutex
	queue []journal.Record
}

func (l *lane) push(records []journal.Record) int {
	l.mu.Lock()
	l.queue = append(l.queue, records...)
	n := len(l.queue)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return n
}

func (l *lane) peek() (journal.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return journal.Record{}, false
	}
	return l.queue[0], true
}

func (l *lane) pop() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue[0] = journal.Record{}
	l.queue = l.queue[1:]
	return len(l.queue)
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
