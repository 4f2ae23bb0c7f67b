package sms

import (
	"fmt"
	"net/http"
)

const (
	// StatusUpstreamRejected marks a send the gateway answered with a
	// non-2xx response.
	StatusUpstreamRejected = http.StatusNotImplemented
	// StatusTransportFailed marks a send that never got a response.
	StatusTransportFailed = http.StatusBadGateway
)

// SendError is returned by Provider.Send when the message was not accepted.
type SendError struct {
	Provider   string
	StatusCode int    // StatusUpstreamRejected or StatusTransportFailed
	Detail     string // raw gateway response or transport error text
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode == StatusTransportFailed {
		return fmt.Sprintf("%s: send request: %s", e.Provider, e.Detail)
	}
	return fmt.Sprintf("%s: upstream rejected: %s", e.Provider, e.Detail)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the gateway itself refused the message.
func (e *SendError) Rejected() bool {
	return e.StatusCode == StatusUpstreamRejected
}
