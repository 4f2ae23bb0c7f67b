package sms

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CaptureProvider records sends for use in tests. Statuses can be scripted
// per message with SetStatus; unscripted messages report StatusPending.
type CaptureProvider struct {
	mu       sync.Mutex
	Calls    []CaptureCall
	statuses map[uuid.UUID]Status
	// SendErr, when set, is returned from every Send after recording the call.
	SendErr error
}

// CaptureCall records a single Send invocation.
type CaptureCall struct {
	ID      uuid.UUID
	Request SendRequest
	At      time.Time
}

func (c *CaptureProvider) Send(_ context.Context, req SendRequest) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.Calls = append(c.Calls, CaptureCall{ID: id, Request: req, At: time.Now()})
	if c.statuses == nil {
		c.statuses = make(map[uuid.UUID]Status)
	}
	c.statuses[id] = StatusPending
	return id, c.SendErr
}

// SetStatus scripts the status reported for id.
func (c *CaptureProvider) SetStatus(id uuid.UUID, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statuses == nil {
		c.statuses = make(map[uuid.UUID]Status)
	}
	c.statuses[id] = status
}

func (c *CaptureProvider) MessageStatus(_ context.Context, id uuid.UUID) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.statuses[id]; ok {
		return s
	}
	return StatusUnknown
}

func (c *CaptureProvider) ReceivedMessages(context.Context) []ReceivedMessage {
	return []ReceivedMessage{}
}

func (c *CaptureProvider) DeleteReceivedMessage(_ context.Context, id uuid.UUID) DeleteResult {
	return DeleteResult{MessageID: id.String(), Feedback: "capture provider stores no inbound messages"}
}

// RecentMessageStatuses returns the current status of every captured message,
// most recent first.
func (c *CaptureProvider) RecentMessageStatuses(context.Context) []StatusRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StatusRecord, 0, len(c.Calls))
	for i := len(c.Calls) - 1; i >= 0; i-- {
		call := c.Calls[i]
		out = append(out, StatusRecord{MessageID: call.ID, Status: c.statuses[call.ID], UpdatedAt: call.At})
	}
	return out
}

// Last returns the most recent call, or false if nothing was sent.
func (c *CaptureProvider) Last() (CaptureCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Calls) == 0 {
		return CaptureCall{}, false
	}
	return c.Calls[len(c.Calls)-1], true
}

// Reset clears all recorded calls and scripted statuses.
func (c *CaptureProvider) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
	c.statuses = nil
}
