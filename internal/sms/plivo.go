package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	plivoProviderName   = "plivo"
	plivoDefaultBaseURL = "https://api.plivo.com"
)

// PlivoProvider sends SMS and polls delivery status via the Plivo REST API.
type PlivoProvider struct {
	sendOnly
	authID     string
	fromNumber string
	baseURL    string
	diag       Diagnostics
	submit     submission
	poller     statusPoller
}

// NewPlivoProvider creates a PlivoProvider. If baseURL is empty, the Plivo
// production API is used.
func NewPlivoProvider(authID, authToken, fromNumber, baseURL string, timeout time.Duration, diag Diagnostics) *PlivoProvider {
	if baseURL == "" {
		baseURL = plivoDefaultBaseURL
	}
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	client := newBasicAuthClient(authID, authToken, timeout)
	p := &PlivoProvider{
		sendOnly:   sendOnly{provider: plivoProviderName, label: "Plivo", diag: diag},
		authID:     authID,
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		diag:       diag,
	}
	p.submit = submission{
		provider:   plivoProviderName,
		client:     client,
		diag:       diag,
		parseID:    parsePlivoID,
		parseError: parsePlivoError,
	}
	p.poller = statusPoller{
		provider: plivoProviderName,
		client:   client,
		diag:     diag,
		table:    plivoStatuses,
		url:      p.statusURL,
		extract:  extractPlivoStatus,
	}
	return p
}

func (p *PlivoProvider) accountURL() string {
	return fmt.Sprintf("%s/v1/Account/%s/Message/", p.baseURL, url.PathEscape(p.authID))
}

// parsePlivoID takes the first entry of message_uuid. A single destination
// always yields exactly one.
func parsePlivoID(body []byte) (uuid.UUID, error) {
	var parsed struct {
		MessageUUID []string `json:"message_uuid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.MessageUUID) == 0 || parsed.MessageUUID[0] == "" {
		return uuid.Nil, errors.New("message_uuid missing")
	}
	id, err := uuid.Parse(parsed.MessageUUID[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("message_uuid %q: %w", parsed.MessageUUID[0], err)
	}
	return id, nil
}

func parsePlivoError(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) != nil {
		return ""
	}
	return errResp.Error
}

func (p *PlivoProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	reqBody, err := json.Marshal(map[string]string{
		"src":  p.fromNumber,
		"dst":  req.PhoneNumber,
		"text": req.Message,
	})
	if err != nil {
		return uuid.Nil, sendFailure(ctx, p.diag, plivoProviderName, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("marshal request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.accountURL(), bytes.NewReader(reqBody))
	if err != nil {
		return uuid.Nil, sendFailure(ctx, p.diag, plivoProviderName, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return p.submit.do(ctx, httpReq)
}

var plivoStatuses = statusTable{
	"queued":      StatusPending,
	"sent":        StatusPending,
	"delivered":   StatusDelivered,
	"read":        StatusDelivered,
	"failed":      StatusFailed,
	"undelivered": StatusFailed,
	"rejected":    StatusFailed,
}

func (p *PlivoProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	return p.poller.poll(ctx, id)
}

func (p *PlivoProvider) statusURL(id uuid.UUID) string {
	return p.accountURL() + id.String() + "/"
}

func extractPlivoStatus(body []byte) (*string, error) {
	var parsed struct {
		MessageState *string `json:"message_state"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.MessageState, nil
}
