package sms

import (
	"encoding/base64"
	"net/http"
	"time"
)

// basicAuthHeader returns the Authorization value for key:secret.
func basicAuthHeader(key, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
}

// headerTransport sets default headers on every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	for k, vs := range t.headers {
		if r.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(r)
}

// newBasicAuthClient returns a client that authenticates every request with
// key:secret. The client is meant to be created once and shared.
func newBasicAuthClient(key, secret string, timeout time.Duration) *http.Client {
	return newHeaderClient("Authorization", basicAuthHeader(key, secret), timeout)
}

// newBearerAuthClient returns a client that sends token as a bearer credential.
func newBearerAuthClient(token string, timeout time.Duration) *http.Client {
	return newHeaderClient("Authorization", "Bearer "+token, timeout)
}

func newHeaderClient(name, value string, timeout time.Duration) *http.Client {
	headers := make(http.Header)
	headers.Set(name, value)
	return &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: headers,
		},
	}
}
