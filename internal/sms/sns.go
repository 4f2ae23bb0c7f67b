package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const snsProviderName = "sns"

// SNSPublisher abstracts the AWS SNS Publish call for testability.
type SNSPublisher interface {
	Publish(ctx context.Context, phoneNumber, message string) (messageID string, err error)
}

// SNSProvider sends SMS via AWS SNS. SNS offers no per-message status lookup
// or inbound storage, so those operations report unknown/empty results.
type SNSProvider struct {
	sendOnly
	publisher SNSPublisher
	diag      Diagnostics
}

// NewSNSProvider creates an SNSProvider with the given publisher.
// If diag is nil, diagnostics go to slog.Default().
func NewSNSProvider(publisher SNSPublisher, diag Diagnostics) *SNSProvider {
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	return &SNSProvider{
		sendOnly:  sendOnly{provider: snsProviderName, label: "SNS", diag: diag},
		publisher: publisher,
		diag:      diag,
	}
}

func (p *SNSProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	messageID, err := p.publisher.Publish(ctx, req.PhoneNumber, req.Message)
	if err != nil {
		code := StatusTransportFailed
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code = StatusUpstreamRejected
		}
		p.diag.Error(ctx, snsProviderName, "send failed", "", err.Error())
		return uuid.Nil, &SendError{
			Provider:   snsProviderName,
			StatusCode: code,
			Detail:     err.Error(),
			Err:        err,
		}
	}

	id, err := uuid.Parse(messageID)
	if err != nil {
		p.diag.Warn(ctx, snsProviderName, "message id unavailable", "",
			fmt.Sprintf("message id %q: %v", messageID, err))
		return uuid.Nil, nil
	}
	return id, nil
}

func (p *SNSProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	p.diag.Warn(ctx, snsProviderName, "not implemented", correlationID(id),
		"status check attempted but SNS exposes no per-message status")
	return StatusUnknown
}
