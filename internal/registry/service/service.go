package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propshare/internal/access"
	"propshare/internal/journal"
	"propshare/internal/ledger"
	"propshare/internal/platform/metrics"
	"propshare/pkg/domain"
	dErrors "propshare/pkg/domain-errors"
	"propshare/pkg/platform/sentinel"
	"propshare/pkg/requestcontext"
)

// RoleAdmin is the authorization policy plus role administration.
//
//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RoleAdmin,Dispatcher
type RoleAdmin interface {
	access.Policy
	Grant(caller domain.Address, role access.Role, account domain.Address) (bool, error)
	Revoke(caller domain.Address, role access.Role, account domain.Address) (bool, error)
	Has(role access.Role, account domain.Address) bool
	Members(role access.Role) []domain.Address
}

// Dispatcher receives committed records for asynchronous delivery.
type Dispatcher interface {
	Enqueue(records ...journal.Record) error
}

// Service is the share registry. All mutations run one at a time under a
// write lock: authorize, decide, append to the journal, apply, hand off to the
// dispatcher. Reads share a read lock and always see a committed state.
type Service struct {
	mu    sync.RWMutex
	state *ledger.State
	seq   uint64

	roles      RoleAdmin
	journal    journal.Store
	dispatcher Dispatcher

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service over an empty ledger. Call Restore to load an
// existing journal.
func New(roles RoleAdmin, store journal.Store, opts ...Option) *Service {
	s := &Service{
		state:   ledger.New(),
		roles:   roles,
		journal: store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("propshare/registry")
	}
	return s
}

// Restore rebuilds the ledger from the journal and checks its invariants.
func (s *Service) Restore(ctx context.Context) error {
	state := ledger.New()
	last, err := journal.Replay(ctx, s.journal, state)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to replay journal")
	}
	if err := state.CheckInvariants(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "replayed journal breaks ledger invariants")
	}

	s.mu.Lock()
	s.state = state
	s.seq = last
	s.mu.Unlock()

	s.metrics.SetJournalSequence(last)
	for _, p := range state.Properties() {
		s.metrics.SetMintedShares(p.ID.String(), state.MintedShares(p.ID))
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "ledger restored",
			"sequence", last,
			"properties", len(state.Properties()),
		)
	}
	return nil
}

// Sequence returns the last committed journal sequence.
func (s *Service) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// execute runs one mutation with tracing and metrics around commit.
func (s *Service) execute(ctx context.Context, caller domain.Address, name string, op access.Operation, cmd ledger.Command) (ledger.Event, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+name,
		trace.WithAttributes(
			attribute.String("propshare.operation", name),
			attribute.String("propshare.caller", caller.String()),
		),
	)
	defer span.End()

	ev, err := s.commit(ctx, caller, op, cmd)

	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logRejected(ctx, name, caller, err)
	}
	s.metrics.ObserveOperation(name, outcome, time.Since(start))
	return ev, err
}

func (s *Service) commit(ctx context.Context, caller domain.Address, op access.Operation, cmd ledger.Command) (ledger.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled before commit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if op != "" && !s.roles.Allowed(caller, op) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller lacks the role for "+string(op))
	}
	ev, err := s.state.Decide(cmd)
	if err != nil {
		return nil, err
	}

	rec, err := journal.Encode(s.seq+1, caller, s.now(), ev)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode event")
	}
	// The critical section is not interruptible: once the append starts, a
	// client disconnect must not leave its outcome unknown.
	if err := s.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrOutOfOrder) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "journal sequence conflict")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist event")
	}
	if err := s.state.Apply(ev); err != nil {
		// Decide accepted the event, so this is a ledger bug. The journal
		// already holds the record; replay will surface the same error.
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "committed event failed to apply")
	}
	s.seq = rec.Sequence
	s.metrics.SetJournalSequence(s.seq)

	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(rec); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "event not handed to relay",
				"sequence", rec.Sequence,
				"error", err,
			)
		}
	}
	return ev, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attributes = append(attributes, "client_ip", ip)
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		attributes = append(attributes, "user_agent", ua)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func (s *Service) logRejected(ctx context.Context, op string, caller domain.Address, err error) {
	if s.logger == nil {
		return
	}
	level := slog.LevelInfo
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "registry operation rejected",
		"operation", op,
		"caller", caller.String(),
		"code", string(dErrors.CodeOf(err)),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
