package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smsbridge/smsbridge/internal/config"
	"github.com/smsbridge/smsbridge/internal/eventlog"
	"github.com/smsbridge/smsbridge/internal/httputil"
	"github.com/smsbridge/smsbridge/internal/sms"
	"github.com/smsbridge/smsbridge/internal/testutil"
)

func newTestServer(t *testing.T, provider sms.Provider, events *eventlog.Store, opts ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.SMS.AllowedCountries = nil
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg, testutil.DiscardLogger(), provider, events)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	return testutil.DecodeJSON[T](t, w.Body)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodGet, "/health", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string]any](t, w)
	testutil.Equal(t, any("ok"), resp["status"])
	testutil.Equal(t, any("log"), resp["provider"])
}

func TestSMSSend_Success(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{}
	srv := newTestServer(t, capture, nil)

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+64 21 123 4567","body":"hello \"there\""}`)
	testutil.StatusCode(t, http.StatusOK, w.Code)

	call, ok := capture.Last()
	testutil.True(t, ok)
	testutil.Equal(t, "+64211234567", call.Request.PhoneNumber)
	testutil.Equal(t, `hello "there"`, call.Request.Message)

	resp := decodeBody[map[string]any](t, w)
	testutil.Equal(t, any(call.ID.String()), resp["message_id"])
	testutil.Equal(t, any(true), resp["tracked"])
	testutil.Equal(t, any("sent"), resp["status"])
	testutil.Equal(t, any("+64211234567"), resp["to"])
}

func TestSMSSend_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		body    string
		field   string
		wantMsg string
	}{
		{"empty to", `{"to":"","body":"hello"}`, "to", "to is required"},
		{"invalid phone", `{"to":"notaphone","body":"hello"}`, "to", "invalid phone number"},
		{"empty body", `{"to":"+14155552671","body":""}`, "body", "body is required"},
		{"body too long", `{"to":"+14155552671","body":"` + strings.Repeat("a", maxSMSBodyLength+1) + `"}`, "body", "body exceeds maximum length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &sms.CaptureProvider{}
			srv := newTestServer(t, capture, nil)

			w := doRequest(t, srv, http.MethodPost, "/api/sms/send", tt.body)
			testutil.StatusCode(t, http.StatusBadRequest, w.Code)

			resp := decodeBody[httputil.ErrorResponse](t, w)
			testutil.Equal(t, tt.wantMsg, resp.Message)
			_, hasField := resp.Data[tt.field]
			testutil.True(t, hasField, "missing field detail for %s", tt.field)
			testutil.SliceLen(t, capture.Calls, 0)
		})
	}
}

func TestSMSSend_MaxLengthBodyAccepted(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{}
	srv := newTestServer(t, capture, nil)

	body := `{"to":"+14155552671","body":"` + strings.Repeat("a", maxSMSBodyLength) + `"}`
	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", body)
	testutil.StatusCode(t, http.StatusOK, w.Code)
	testutil.SliceLen(t, capture.Calls, 1)
}

func TestSMSSend_CountryNotAllowed(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{}
	srv := newTestServer(t, capture, nil, func(c *config.Config) {
		c.SMS.AllowedCountries = []string{"NZ"}
	})

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+14155552671","body":"hello"}`)
	testutil.StatusCode(t, http.StatusBadRequest, w.Code)
	testutil.Contains(t, w.Body.String(), "phone number country not allowed")
	testutil.SliceLen(t, capture.Calls, 0)

	w = doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+64211234567","body":"hello"}`)
	testutil.StatusCode(t, http.StatusOK, w.Code)
}

func TestSMSSend_InvalidJSON(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":`)
	testutil.StatusCode(t, http.StatusBadRequest, w.Code)
	testutil.Contains(t, w.Body.String(), "invalid JSON body")
}

func TestSMSSend_WrongContentType(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sms/send", strings.NewReader(`to=+14155552671`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	testutil.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestSMSSend_UpstreamRejectedKeepsID(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{
		SendErr: &sms.SendError{
			Provider:   "etxt",
			StatusCode: sms.StatusUpstreamRejected,
			Detail:     "400 Bad Request: invalid destination",
		},
	}
	srv := newTestServer(t, capture, nil)

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+14155552671","body":"hello"}`)
	testutil.StatusCode(t, http.StatusNotImplemented, w.Code)

	call, _ := capture.Last()
	resp := decodeBody[httputil.ErrorResponse](t, w)
	testutil.Equal(t, http.StatusNotImplemented, resp.Code)
	testutil.Contains(t, resp.Message, "upstream rejected")
	testutil.Equal(t, any(call.ID.String()), resp.Data["message_id"])
	testutil.Equal(t, any(true), resp.Data["tracked"])
}

func TestSMSSend_TransportFailure(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{
		SendErr: &sms.SendError{
			Provider:   "etxt",
			StatusCode: sms.StatusTransportFailed,
			Detail:     "connection refused",
		},
	}
	srv := newTestServer(t, capture, nil)

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+14155552671","body":"hello"}`)
	testutil.StatusCode(t, http.StatusBadGateway, w.Code)
	testutil.Contains(t, w.Body.String(), "send request: connection refused")
}

func TestSMSSend_UntypedErrorIs500(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{SendErr: errors.New("boom")}
	srv := newTestServer(t, capture, nil)

	w := doRequest(t, srv, http.MethodPost, "/api/sms/send", `{"to":"+14155552671","body":"hello"}`)
	testutil.StatusCode(t, http.StatusInternalServerError, w.Code)
	testutil.Contains(t, w.Body.String(), "failed to send SMS")
}

func TestSMSStatus(t *testing.T) {
	t.Parallel()
	capture := &sms.CaptureProvider{}
	srv := newTestServer(t, capture, nil)

	id, err := capture.Send(context.Background(), sms.SendRequest{PhoneNumber: "+14155552671", Message: "x"})
	testutil.NoError(t, err)
	capture.SetStatus(id, sms.StatusDelivered)

	w := doRequest(t, srv, http.MethodGet, "/api/sms/"+id.String()+"/status", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string]any](t, w)
	testutil.Equal(t, any(id.String()), resp["message_id"])
	testutil.Equal(t, any("delivered"), resp["status"])
	testutil.Equal(t, any(true), resp["terminal"])
}

func TestSMSStatus_UnknownID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodGet, "/api/sms/"+uuid.NewString()+"/status", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string]any](t, w)
	testutil.Equal(t, any("unknown"), resp["status"])
	testutil.Equal(t, any(false), resp["terminal"])
}

func TestSMSStatus_InvalidID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodGet, "/api/sms/not-a-uuid/status", "")
	testutil.StatusCode(t, http.StatusBadRequest, w.Code)
	testutil.Contains(t, w.Body.String(), "invalid message id")
}

func TestSMSReceivedAndRecent_EmptyArrays(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodGet, "/api/sms/received", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	testutil.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = doRequest(t, srv, http.MethodGet, "/api/sms/statuses/recent", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	testutil.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestSMSDeleteReceived(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)
	id := uuid.New()

	w := doRequest(t, srv, http.MethodDelete, "/api/sms/received/"+id.String(), "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	resp := decodeBody[sms.DeleteResult](t, w)
	testutil.Equal(t, id.String(), resp.MessageID)
	testutil.False(t, resp.Deleted)

	w = doRequest(t, srv, http.MethodDelete, "/api/sms/received/nope", "")
	testutil.StatusCode(t, http.StatusBadRequest, w.Code)
}

func TestDiagnostics_Disabled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)

	w := doRequest(t, srv, http.MethodGet, "/api/diagnostics", "")
	testutil.StatusCode(t, http.StatusNotFound, w.Code)
	testutil.Contains(t, w.Body.String(), "event log is not enabled")
}

func TestDiagnostics_ListsRecentEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := eventlog.Open(ctx, ":memory:")
	testutil.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Now()
	for i, name := range []string{"send failed", "status rejected", "not implemented"} {
		err := store.Record(ctx, eventlog.Event{
			Level:     "warn",
			Provider:  "etxt",
			Event:     name,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		testutil.NoError(t, err)
	}
	srv := newTestServer(t, &sms.CaptureProvider{}, store)

	w := doRequest(t, srv, http.MethodGet, "/api/diagnostics?limit=2", "")
	testutil.StatusCode(t, http.StatusOK, w.Code)
	var resp struct {
		Items []eventlog.Event `json:"items"`
		Count int              `json:"count"`
	}
	testutil.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	testutil.Equal(t, 2, resp.Count)
	testutil.SliceLen(t, resp.Items, 2)
	testutil.Equal(t, "not implemented", resp.Items[0].Event)
	testutil.Equal(t, "status rejected", resp.Items[1].Event)
}

func TestDiagnostics_BadLimit(t *testing.T) {
	t.Parallel()
	store, err := eventlog.Open(context.Background(), ":memory:")
	testutil.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	srv := newTestServer(t, &sms.CaptureProvider{}, store)

	for _, q := range []string{"0", "-3", "abc"} {
		w := doRequest(t, srv, http.MethodGet, "/api/diagnostics?limit="+q, "")
		testutil.StatusCode(t, http.StatusBadRequest, w.Code)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &sms.CaptureProvider{}, nil)
	testutil.NoError(t, srv.Shutdown(context.Background()))
}

func TestStartWithReadyAndShutdown(t *testing.T) {
	srv := newTestServer(t, &sms.CaptureProvider{}, nil, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = freePort(t)
	})

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartWithReady(ready) }()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	resp, err := http.Get("http://" + srv.cfg.Address() + "/health")
	testutil.NoError(t, err)
	resp.Body.Close()
	testutil.Equal(t, http.StatusOK, resp.StatusCode)

	testutil.NoError(t, srv.Shutdown(context.Background()))
	testutil.NoError(t, <-errCh)
}

func freePort(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	return srv.Listener.Addr().(*net.TCPAddr).Port
}
