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
	telnyxProviderName   = "telnyx"
	telnyxDefaultBaseURL = "https://api.telnyx.com"
)

// TelnyxProvider sends SMS and polls delivery status via the Telnyx v2
// messaging API. Telnyx message ids are UUIDs.
type TelnyxProvider struct {
	sendOnly
	fromNumber string
	baseURL    string
	diag       Diagnostics
	submit     submission
	poller     statusPoller
}

// NewTelnyxProvider creates a TelnyxProvider. If baseURL is empty, the Telnyx
// production API is used.
func NewTelnyxProvider(apiKey, fromNumber, baseURL string, timeout time.Duration, diag Diagnostics) *TelnyxProvider {
	if baseURL == "" {
		baseURL = telnyxDefaultBaseURL
	}
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	client := newBearerAuthClient(apiKey, timeout)
	p := &TelnyxProvider{
		sendOnly:   sendOnly{provider: telnyxProviderName, label: "Telnyx", diag: diag},
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		diag:       diag,
	}
	p.submit = submission{
		provider:   telnyxProviderName,
		client:     client,
		diag:       diag,
		parseID:    parseTelnyxID,
		parseError: parseTelnyxError,
	}
	p.poller = statusPoller{
		provider: telnyxProviderName,
		client:   client,
		diag:     diag,
		table:    telnyxStatuses,
		url:      p.statusURL,
		extract:  extractTelnyxStatus,
	}
	return p
}

func parseTelnyxID(body []byte) (uuid.UUID, error) {
	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Data.ID == "" {
		return uuid.Nil, errors.New("data.id missing")
	}
	id, err := uuid.Parse(parsed.Data.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("data.id %q: %w", parsed.Data.ID, err)
	}
	return id, nil
}

func parseTelnyxError(body []byte) string {
	var errResp struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return ""
	}
	first := errResp.Errors[0]
	if first.Detail != "" {
		return first.Title + ": " + first.Detail
	}
	return first.Title
}

func (p *TelnyxProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	reqBody, err := json.Marshal(map[string]string{
		"from": p.fromNumber,
		"to":   req.PhoneNumber,
		"text": req.Message,
	})
	if err != nil {
		return uuid.Nil, sendFailure(ctx, p.diag, telnyxProviderName, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("marshal request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/messages", bytes.NewReader(reqBody))
	if err != nil {
		return uuid.Nil, sendFailure(ctx, p.diag, telnyxProviderName, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return p.submit.do(ctx, httpReq)
}

var telnyxStatuses = statusTable{
	"queued":               StatusPending,
	"sending":              StatusPending,
	"sent":                 StatusPending,
	"delivered":            StatusDelivered,
	"sending_failed":       StatusFailed,
	"delivery_failed":      StatusFailed,
	"delivery_unconfirmed": StatusUnknown,
}

func (p *TelnyxProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	return p.poller.poll(ctx, id)
}

func (p *TelnyxProvider) statusURL(id uuid.UUID) string {
	return p.baseURL + "/v2/messages/" + id.String()
}

// extractTelnyxStatus reads the status of the single recipient in data.to.
func extractTelnyxStatus(body []byte) (*string, error) {
	var parsed struct {
		Data struct {
			To []struct {
				Status *string `json:"status"`
			} `json:"to"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data.To) == 0 {
		return nil, nil
	}
	return parsed.Data.To[0].Status, nil
}
