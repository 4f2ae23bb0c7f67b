package sms

import (
	"context"
	"log/slog"
	"sync"
)

// Diagnostics receives provider warnings and errors. messageID is "" when no
// correlation id applies.
type Diagnostics interface {
	Warn(ctx context.Context, provider, event, messageID, detail string)
	Error(ctx context.Context, provider, event, messageID, detail string)
}

// SlogDiagnostics writes diagnostics to a structured logger.
type SlogDiagnostics struct {
	logger *slog.Logger
}

// NewSlogDiagnostics creates a SlogDiagnostics. If logger is nil, slog.Default() is used.
func NewSlogDiagnostics(logger *slog.Logger) *SlogDiagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogDiagnostics{logger: logger}
}

func (d *SlogDiagnostics) Warn(ctx context.Context, provider, event, messageID, detail string) {
	d.logger.WarnContext(ctx, "sms diagnostic",
		"provider", provider,
		"event", event,
		"message_id", messageID,
		"detail", detail,
	)
}

func (d *SlogDiagnostics) Error(ctx context.Context, provider, event, messageID, detail string) {
	d.logger.ErrorContext(ctx, "sms diagnostic",
		"provider", provider,
		"event", event,
		"message_id", messageID,
		"detail", detail,
	)
}

// MultiDiagnostics fans each record out to every sink.
type MultiDiagnostics []Diagnostics

func (m MultiDiagnostics) Warn(ctx context.Context, provider, event, messageID, detail string) {
	for _, d := range m {
		d.Warn(ctx, provider, event, messageID, detail)
	}
}

func (m MultiDiagnostics) Error(ctx context.Context, provider, event, messageID, detail string) {
	for _, d := range m {
		d.Error(ctx, provider, event, messageID, detail)
	}
}

// DiagnosticRecord is one record captured by RecordingDiagnostics.
type DiagnosticRecord struct {
	Level     string
	Provider  string
	Event     string
	MessageID string
	Detail    string
}

// RecordingDiagnostics keeps every record in memory. Used in tests.
type RecordingDiagnostics struct {
	mu      sync.Mutex
	Records []DiagnosticRecord
}

func (r *RecordingDiagnostics) Warn(_ context.Context, provider, event, messageID, detail string) {
	r.add("warn", provider, event, messageID, detail)
}

func (r *RecordingDiagnostics) Error(_ context.Context, provider, event, messageID, detail string) {
	r.add("error", provider, event, messageID, detail)
}

func (r *RecordingDiagnostics) add(level, provider, event, messageID, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, DiagnosticRecord{
		Level:     level,
		Provider:  provider,
		Event:     event,
		MessageID: messageID,
		Detail:    detail,
	})
}

// Snapshot returns a copy of the records captured so far.
func (r *RecordingDiagnostics) Snapshot() []DiagnosticRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DiagnosticRecord, len(r.Records))
	copy(out, r.Records)
	return out
}

// Reset clears all recorded diagnostics.
func (r *RecordingDiagnostics) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = nil
}
