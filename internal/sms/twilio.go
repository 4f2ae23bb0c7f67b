package sms

import (
	"context"
	"encoding/hex"
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
	twilioProviderName   = "twilio"
	twilioDefaultBaseURL = "https://api.twilio.com"
	twilioSIDPrefix      = "SM"
)

// TwilioProvider sends SMS and polls delivery status via the Twilio REST API.
// Twilio message SIDs ("SM" + 32 hex digits) carry exactly 128 bits and are
// converted to and from uuid.UUID.
type TwilioProvider struct {
	sendOnly
	accountSID string
	fromNumber string
	baseURL    string
	diag       Diagnostics
	submit     submission
	poller     statusPoller
}

// NewTwilioProvider creates a TwilioProvider. If baseURL is empty, the Twilio
// production API is used (useful for tests that pass an httptest server URL).
func NewTwilioProvider(accountSID, authToken, fromNumber, baseURL string, timeout time.Duration, diag Diagnostics) *TwilioProvider {
	if baseURL == "" {
		baseURL = twilioDefaultBaseURL
	}
	if diag == nil {
		diag = NewSlogDiagnostics(nil)
	}
	client := newBasicAuthClient(accountSID, authToken, timeout)
	p := &TwilioProvider{
		sendOnly:   sendOnly{provider: twilioProviderName, label: "Twilio", diag: diag},
		accountSID: accountSID,
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		diag:       diag,
	}
	p.submit = submission{
		provider:   twilioProviderName,
		client:     client,
		diag:       diag,
		parseID:    parseTwilioSID,
		parseError: parseTwilioError,
	}
	p.poller = statusPoller{
		provider: twilioProviderName,
		client:   client,
		diag:     diag,
		table:    twilioStatuses,
		url:      p.statusURL,
		extract:  extractTwilioStatus,
	}
	return p
}

// twilioSIDToUUID converts a message SID to its 128-bit value.
func twilioSIDToUUID(sid string) (uuid.UUID, error) {
	if !strings.HasPrefix(sid, twilioSIDPrefix) || len(sid) != len(twilioSIDPrefix)+32 {
		return uuid.Nil, fmt.Errorf("sid %q is not an SM message sid", sid)
	}
	var id uuid.UUID
	if _, err := hex.Decode(id[:], []byte(sid[len(twilioSIDPrefix):])); err != nil {
		return uuid.Nil, fmt.Errorf("sid %q: %w", sid, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("sid is all zeros")
	}
	return id, nil
}

func uuidToTwilioSID(id uuid.UUID) string {
	return twilioSIDPrefix + hex.EncodeToString(id[:])
}

func parseTwilioSID(body []byte) (uuid.UUID, error) {
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.SID == "" {
		return uuid.Nil, errors.New("sid missing")
	}
	return twilioSIDToUUID(parsed.SID)
}

func parseTwilioError(body []byte) string {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) != nil || errResp.Message == "" {
		return ""
	}
	return fmt.Sprintf("error %d: %s", errResp.Code, errResp.Message)
}

func (p *TwilioProvider) Send(ctx context.Context, req SendRequest) (uuid.UUID, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, url.PathEscape(p.accountSID))

	form := url.Values{}
	form.Set("To", req.PhoneNumber)
	form.Set("From", p.fromNumber)
	form.Set("Body", req.Message)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return uuid.Nil, sendFailure(ctx, p.diag, twilioProviderName, uuid.Nil, StatusTransportFailed,
			fmt.Sprintf("build request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.submit.do(ctx, httpReq)
}

// twilioStatuses covers the outbound message lifecycle. The inbound values
// receiving and received are not listed.
var twilioStatuses = statusTable{
	"queued":      StatusPending,
	"accepted":    StatusPending,
	"scheduled":   StatusPending,
	"sending":     StatusPending,
	"sent":        StatusPending,
	"delivered":   StatusDelivered,
	"read":        StatusDelivered,
	"failed":      StatusFailed,
	"undelivered": StatusFailed,
	"canceled":    StatusFailed,
}

func (p *TwilioProvider) MessageStatus(ctx context.Context, id uuid.UUID) Status {
	return p.poller.poll(ctx, id)
}

func (p *TwilioProvider) statusURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json",
		p.baseURL, url.PathEscape(p.accountSID), uuidToTwilioSID(id))
}

func extractTwilioStatus(body []byte) (*string, error) {
	var parsed struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Status, nil
}
