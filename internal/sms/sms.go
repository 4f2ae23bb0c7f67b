package sms

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SendRequest is an outbound message. The provider passes both fields through
// to the gateway without validating them.
type SendRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// Status is the provider-independent delivery status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusUnknown   Status = "unknown"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// ReceivedMessage is an inbound SMS.
type ReceivedMessage struct {
	MessageID  uuid.UUID `json:"message_id"`
	FromNumber string    `json:"from_number"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// DeleteResult reports the outcome of deleting an inbound message.
type DeleteResult struct {
	MessageID string `json:"message_id"`
	Deleted   bool   `json:"deleted"`
	Feedback  string `json:"feedback"`
}

// StatusRecord is a recently observed status for a sent message.
type StatusRecord struct {
	MessageID uuid.UUID `json:"message_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider sends SMS through one gateway and reports delivery progress.
//
// Send always returns a correlation id; uuid.Nil means the message may have
// been sent but cannot be tracked. The error, when non-nil, is a *SendError.
// The remaining methods fold every failure into their return value.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (uuid.UUID, error)
	MessageStatus(ctx context.Context, id uuid.UUID) Status
	ReceivedMessages(ctx context.Context) []ReceivedMessage
	DeleteReceivedMessage(ctx context.Context, id uuid.UUID) DeleteResult
	RecentMessageStatuses(ctx context.Context) []StatusRecord
}
