package eventlog

import (
	"context"
	"log/slog"
)

// Diagnostics adapts a Store to sms.Diagnostics. Write failures are logged
// and otherwise ignored so a broken event log never affects message flow.
type Diagnostics struct {
	store  *Store
	logger *slog.Logger
}

// NewDiagnostics creates a Diagnostics sink. If logger is nil, slog.Default() is used.
func NewDiagnostics(store *Store, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{store: store, logger: logger}
}

func (d *Diagnostics) Warn(ctx context.Context, provider, event, messageID, detail string) {
	d.record(ctx, "warn", provider, event, messageID, detail)
}

func (d *Diagnostics) Error(ctx context.Context, provider, event, messageID, detail string) {
	d.record(ctx, "error", provider, event, messageID, detail)
}

func (d *Diagnostics) record(ctx context.Context, level, provider, event, messageID, detail string) {
	// Detach from request cancellation: the event should be kept even when
	// the caller has already gone away.
	err := d.store.Record(context.WithoutCancel(ctx), Event{
		Level:     level,
		Provider:  provider,
		Event:     event,
		MessageID: messageID,
		Detail:    detail,
	})
	if err != nil {
		d.logger.Error("failed to record sms diagnostic", "error", err, "event", event)
	}
}
