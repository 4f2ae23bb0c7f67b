package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/smsbridge/smsbridge/internal/httputil"
	"github.com/smsbridge/smsbridge/internal/sms"
)

const maxSMSBodyLength = 1600

const (
	defaultDiagnosticsLimit = 50
	maxDiagnosticsLimit     = 500
)

// smsSendRequest is the POST /api/sms/send body.
type smsSendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// smsSendInput holds validated and normalized fields from an SMS send request.
type smsSendInput struct {
	Phone string // E.164 normalized
	Body  string
}

// fieldError names the request field that failed validation.
type fieldError struct {
	Field   string
	Code    string
	Message string
}

// validateSMSSend normalizes the destination and checks the body.
func (s *Server) validateSMSSend(req smsSendRequest) (*smsSendInput, *fieldError) {
	if req.To == "" {
		return nil, &fieldError{"to", "required", "to is required"}
	}
	phone, err := sms.NormalizePhone(req.To)
	if err != nil {
		return nil, &fieldError{"to", "invalid", "invalid phone number"}
	}
	if !sms.IsAllowedCountry(phone, s.allowedCountries) {
		return nil, &fieldError{"to", "country_not_allowed", "phone number country not allowed"}
	}
	if req.Body == "" {
		return nil, &fieldError{"body", "required", "body is required"}
	}
	if len(req.Body) > maxSMSBodyLength {
		return nil, &fieldError{"body", "too_long", "body exceeds maximum length"}
	}
	return &smsSendInput{Phone: phone, Body: req.Body}, nil
}

// handleSMSSend handles POST /api/sms/send.
// A rejected send still reports the correlation id when the gateway returned one.
func (s *Server) handleSMSSend(w http.ResponseWriter, r *http.Request) {
	var req smsSendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	input, ferr := s.validateSMSSend(req)
	if ferr != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, ferr.Message, ferr.Field, ferr.Code, ferr.Message)
		return
	}

	id, err := s.provider.Send(r.Context(), sms.SendRequest{
		PhoneNumber: input.Phone,
		Message:     input.Body,
	})
	if err != nil {
		var sendErr *sms.SendError
		if errors.As(err, &sendErr) {
			s.logger.Warn("sms send failed",
				"provider", sendErr.Provider,
				"status", sendErr.StatusCode,
				"to", sms.MaskPhone(input.Phone),
				"message_id", id.String(),
			)
			httputil.WriteErrorWithData(w, sendErr.StatusCode, sendErr.Error(), map[string]any{
				"message_id": id.String(),
				"tracked":    id != uuid.Nil,
			})
			return
		}
		s.logger.Error("sms send failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to send SMS")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message_id": id.String(),
		"tracked":    id != uuid.Nil,
		"status":     "sent",
		"to":         input.Phone,
	})
}

// handleSMSStatus handles GET /api/sms/{id}/status.
func (s *Server) handleSMSStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	status := s.provider.MessageStatus(r.Context(), id)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message_id": id.String(),
		"status":     status,
		"terminal":   status.IsTerminal(),
	})
}

// handleSMSReceived handles GET /api/sms/received.
func (s *Server) handleSMSReceived(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.provider.ReceivedMessages(r.Context()))
}

// handleSMSDeleteReceived handles DELETE /api/sms/received/{id}.
func (s *Server) handleSMSDeleteReceived(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.provider.DeleteReceivedMessage(r.Context(), id))
}

// handleSMSRecentStatuses handles GET /api/sms/statuses/recent.
func (s *Server) handleSMSRecentStatuses(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.provider.RecentMessageStatuses(r.Context()))
}

// handleDiagnostics handles GET /api/diagnostics?limit=N.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		httputil.WriteError(w, http.StatusNotFound, "event log is not enabled")
		return
	}

	limit := defaultDiagnosticsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDiagnosticsLimit)
	}

	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("diagnostics query error", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read diagnostics")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"items": events,
		"count": len(events),
	})
}

// parseMessageID reads the {id} URL parameter. Writes a 400 and returns
// false when it is not a UUID.
func parseMessageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid message id")
		return uuid.Nil, false
	}
	return id, true
}
