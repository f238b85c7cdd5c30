package simpleaccount

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AccountRegistered(ctx context.Context, result *RegisterResult) error {
	return nil
}

func (n *NoopEventSink) AccountDeleted(ctx context.Context, report *DeletionReport) error {
	return nil
}

func (n *NoopEventSink) CompensationFailed(ctx context.Context, identityID uuid.UUID, cause error) error {
	return nil
}

// LoggingEventSink writes every event to a logger under an "event" attribute,
// which makes orphaned identities queryable in log storage.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) AccountRegistered(ctx context.Context, result *RegisterResult) error {
	l.logger.InfoContext(ctx, "account event",
		"event", "account.registered",
		"user_id", result.ID,
		"handle", result.Handle,
	)
	return nil
}

func (l *LoggingEventSink) AccountDeleted(ctx context.Context, report *DeletionReport) error {
	l.logger.InfoContext(ctx, "account event",
		"event", "account.deleted",
		"user_id", report.UserID,
		"partial", report.Partial(),
		"blobs_deleted", report.BlobsDeleted,
	)
	return nil
}

func (l *LoggingEventSink) CompensationFailed(ctx context.Context, identityID uuid.UUID, cause error) error {
	l.logger.ErrorContext(ctx, "account event",
		"event", "account.orphaned_identity",
		"identity_id", identityID,
		"reconcile", true,
		"err", cause,
	)
	return nil
}
