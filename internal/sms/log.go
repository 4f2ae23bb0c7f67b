package sms

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogProvider logs messages instead of delivering them. Useful for development.
// Every sent message reports StatusPending forever.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider creates a LogProvider. If logger is nil, slog.Default() is used.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger.With("provider", "log")}
}

func (p *LogProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	id := uuid.New()
	p.logger.InfoContext(ctx, "sms send (log-only)",
		"message_id", id.String(),
		"to", MaskPhone(req.PhoneNumber),
		"length", len(req.Message),
	)
	p.logger.DebugContext(ctx, "sms body (log-only)", "message_id", id.String(), "body", req.Message)
	return id, nil
}

func (p *LogProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	if id == uuid.Nil {
		return StatusUnknown
	}
	p.logger.DebugContext(ctx, "sms status (log-only)", "message_id", id.String())
	return StatusPending
}

func (p *LogProvider) ReceivedMessages(context.Context) []ReceivedMessage {
	return []ReceivedMessage{}
}

func (p *LogProvider) DeleteReceivedMessage(_ context.Context, id uuid.UUID) DeleteResult {
	return DeleteResult{
		MessageID: id.String(),
		Feedback:  "log provider stores no inbound messages",
	}
}

func (p *LogProvider) RecentMessageStatuses(context.Context) []StatusRecord {
	return []StatusRecord{}
}
