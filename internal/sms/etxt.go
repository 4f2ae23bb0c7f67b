package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	etxtProviderName   = "etxt"
	etxtDefaultBaseURL = "http://api.etxtservice.co.nz"
)

// ETxtProvider sends SMS and polls delivery status via the eTXT REST API.
// Inbound messages are not supported.
type ETxtProvider struct {
	sendOnly
	baseURL string
	client  *http.Client
	diag    Diagnostics
	submit  submission
	poller  statusPoller
}

// NewETxtProvider creates an ETxtProvider. If baseURL is empty, the eTXT
// production API is used. A zero timeout leaves requests bounded only by ctx.
// If diag is nil, diagnostics go to slog.Default().
func NewETxtProvider(apiKey, apiSecret, baseURL string, timeout time.Duration, diag Diagnostics) *ETxtProvider {
	if baseURL == "" {
		baseURL = etxtDefaultBaseURL
	}
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	p := &ETxtProvider{
		sendOnly: sendOnly{provider: etxtProviderName, label: "eTXT", diag: diag},
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   newBasicAuthClient(apiKey, apiSecret, timeout),
		diag:     diag,
	}
	p.submit = submission{
		provider: etxtProviderName,
		client:   p.client,
		diag:     diag,
		parseID:  parseSubmittedID,
	}
	p.poller = statusPoller{
		provider: etxtProviderName,
		client:   p.client,
		diag:     diag,
		table:    etxtStatuses,
		url:      p.statusURL,
		extract:  extractETxtStatus,
	}
	return p
}

type etxtMessage struct {
	Content           string `json:"content"`
	DestinationNumber string `json:"destination_number"`
}

type etxtSubmitRequest struct {
	Messages []etxtMessage `json:"messages"`
}

// encodeSubmitRequest builds the submission body. encoding/json escapes
// quotes, backslashes and control characters; HTML escaping is off so the
// gateway receives the content unchanged.
func encodeSubmitRequest(req SendRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(etxtSubmitRequest{
		Messages: []etxtMessage{{
			Content:           req.Message,
			DestinationNumber: req.PhoneNumber,
		}},
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// parseSubmittedID extracts the gateway id of the submitted message. The
// gateway answers with an array of messages; the last one is used.
func parseSubmittedID(body []byte) (uuid.UUID, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return uuid.Nil, errors.New("empty response body")
	}
	var parsed struct {
		Messages []struct {
			MessageID *string `json:"message_id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return uuid.Nil, errors.New("response has no messages")
	}
	raw := parsed.Messages[len(parsed.Messages)-1].MessageID
	if raw == nil || *raw == "" {
		return uuid.Nil, errors.New("message_id missing")
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("message_id %q: %w", *raw, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("message_id is the nil uuid")
	}
	return id, nil
}

func (p *ETxtProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	reqBody, err := encodeSubmitRequest(req)
	if err != nil {
		return uuid.Nil, p.sendFailed(ctx, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("marshal request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return uuid.Nil, p.sendFailed(ctx, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return p.submit.do(ctx, httpReq)
}

func (p *ETxtProvider) sendFailed(ctx context.Context, id uuid.UUID, code int, detail string, cause error) error {
	return sendFailure(ctx, p.diag, etxtProviderName, id, code, detail, cause)
}

// etxtStatuses is the documented eTXT status vocabulary. Matching is exact.
var etxtStatuses = statusTable{
	"submitted": StatusPending,
	"enroute":   StatusPending,
	"rejected":  StatusFailed,
	"failed":    StatusFailed,
	"delivered": StatusDelivered,
	"expired":   StatusUnknown,
}

// MessageStatus asks the gateway for the current status of one message.
// Network failures and non-2xx answers both yield StatusTimedOut: the status
// endpoint is slow to settle, so they are treated as not yet known.
func (p *ETxtProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	return p.poller.poll(ctx, id)
}

func (p *ETxtProvider) statusURL(id uuid.UUID) string {
	return p.baseURL + "/v1/messages/" + id.String()
}

func extractETxtStatus(body []byte) (*string, error) {
	var parsed struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Status, nil
}
