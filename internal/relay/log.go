package relay

import (
	"context"
	"log/slog"

	"propshare/internal/journal"
)

// LogSink writes one structured line per event. It never fails.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, rec journal.Record) error {
	s.logger.InfoContext(ctx, string(rec.Type),
		"log_type", "ledger_event",
		"sequence", rec.Sequence,
		"event_id", rec.EventID.String(),
		"aggregate_id", rec.AggregateID,
		"caller", rec.Caller.String(),
		"occurred_at", rec.OccurredAt,
		"payload", string(rec.Payload),
	)
	return nil
}
