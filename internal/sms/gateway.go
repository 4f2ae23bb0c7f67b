package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// correlationID renders id for diagnostics. uuid.Nil means "no id" and is
// written as "".
func correlationID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// sendFailure records a failed send and builds the matching *SendError.
func sendFailure(ctx context.Context, diag Diagnostics, provider string, id uuid.UUID, code int, detail string, cause error) error {
	diag.Error(ctx, provider, "send failed", correlationID(id), detail)
	return &SendError{
		Provider:   provider,
		StatusCode: code,
		Detail:     detail,
		Err:        cause,
	}
}

// submission posts one outbound message and recovers the gateway's id.
type submission struct {
	provider string
	client   *http.Client
	diag     Diagnostics
	// parseID extracts the message id from a response body.
	parseID func(body []byte) (uuid.UUID, error)
	// parseError returns the gateway's own error text, or "" when the body
	// carries none. nil means the raw body is used.
	parseError func(body []byte) string
}

// do sends req. A non-2xx answer returns whatever id could be recovered
// together with a StatusUpstreamRejected *SendError.
func (s submission) do(ctx context.Context, req *http.Request) (uuid.UUID, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return uuid.Nil, sendFailure(ctx, s.diag, s.provider, uuid.Nil, StatusTransportFailed, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	id, err := s.parseID(respBody)
	if err != nil {
		detail := err.Error()
		if readErr != nil {
			detail = fmt.Sprintf("read response: %v; %s", readErr, detail)
		}
		s.diag.Warn(ctx, s.provider, "message id unavailable", "", detail)
		id = uuid.Nil
	}

	if !ok {
		msg := ""
		if s.parseError != nil {
			msg = s.parseError(respBody)
		}
		if msg == "" {
			msg = string(respBody)
		}
		detail := fmt.Sprintf("%s: %s", resp.Status, msg)
		return id, sendFailure(ctx, s.diag, s.provider, id, StatusUpstreamRejected, detail, nil)
	}
	return id, nil
}

// statusTable maps the status values a gateway documents to Status. Lookups
// are exact.
type statusTable map[string]Status

// statusPoller performs one delivery status lookup against an HTTP gateway.
type statusPoller struct {
	provider string
	client   *http.Client
	diag     Diagnostics
	table    statusTable
	// url returns the lookup endpoint for a correlation id.
	url func(id uuid.UUID) string
	// extract pulls the raw status from a 2xx body. nil means the field is absent.
	extract func(body []byte) (*string, error)
}

// poll asks the gateway for the status of id. Network failures and non-2xx
// answers yield StatusTimedOut; anything the table does not know yields
// StatusUnknown with an error diagnostic.
func (sp statusPoller) poll(ctx context.Context, id uuid.UUID) Status {
	if id == uuid.Nil {
		sp.diag.Error(ctx, sp.provider, "status check skipped", "", "no message id to look up")
		return StatusUnknown
	}
	msgID := id.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sp.url(id), nil)
	if err != nil {
		sp.diag.Warn(ctx, sp.provider, "status request failed", msgID, err.Error())
		return StatusTimedOut
	}

	resp, err := sp.client.Do(req)
	if err != nil {
		sp.diag.Warn(ctx, sp.provider, "status request failed", msgID, err.Error())
		return StatusTimedOut
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sp.diag.Warn(ctx, sp.provider, "status rejected", msgID,
			fmt.Sprintf("%s: %s", resp.Status, string(body)))
		return StatusTimedOut
	}
	if err != nil {
		sp.diag.Warn(ctx, sp.provider, "status request failed", msgID,
			fmt.Sprintf("read response: %v", err))
		return StatusTimedOut
	}

	raw, err := sp.extract(body)
	if err != nil {
		sp.diag.Error(ctx, sp.provider, "unrecognized status", msgID,
			fmt.Sprintf("parse response: %v", err))
		return StatusUnknown
	}
	if raw == nil {
		sp.diag.Error(ctx, sp.provider, "unrecognized status", msgID, "status field missing")
		return StatusUnknown
	}

	status, ok := sp.table[*raw]
	if !ok {
		sp.diag.Error(ctx, sp.provider, "unrecognized status", msgID,
			fmt.Sprintf("gateway returned status %q", *raw))
		return StatusUnknown
	}
	return status
}

// sendOnly supplies the inbound and listing operations for gateways the
// bridge only sends through. Each call leaves a "not implemented" warning.
type sendOnly struct {
	provider string // diagnostics name
	label    string // display name used in messages
	diag     Diagnostics
}

func (s sendOnly) ReceivedMessages(ctx context.Context) []ReceivedMessage {
	s.diag.Warn(ctx, s.provider, "not implemented", "",
		fmt.Sprintf("receive messages attempted but the %s provider does not support inbound SMS", s.label))
	return []ReceivedMessage{}
}

func (s sendOnly) DeleteReceivedMessage(ctx context.Context, id uuid.UUID) DeleteResult {
	s.diag.Warn(ctx, s.provider, "not implemented", correlationID(id),
		fmt.Sprintf("delete message attempted but the %s provider does not support inbound SMS", s.label))
	return DeleteResult{
		MessageID: id.String(),
		Deleted:   false,
		Feedback:  fmt.Sprintf("delete operation not implemented for %s provider", s.label),
	}
}

func (s sendOnly) RecentMessageStatuses(ctx context.Context) []StatusRecord {
	s.diag.Warn(ctx, s.provider, "not implemented", "",
		fmt.Sprintf("recent statuses attempted but the %s provider does not support status listing", s.label))
	return []StatusRecord{}
}
