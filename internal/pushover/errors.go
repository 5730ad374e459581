package pushover

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClientDisabled is returned when credentials are missing and delivery was requested anyway.
var ErrClientDisabled = errors.New("pushover client is disabled")

// ErrorKind classifies gateway protocol failures.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindParse     ErrorKind = "parse"
	KindStatus    ErrorKind = "status"
	KindGateway   ErrorKind = "gateway"
)

// ProtocolError describes a failed exchange with the gateway.
type ProtocolError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "pushover "+string(e.Kind)+" error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf returns the protocol error kind, or "" for other errors.
func KindOf(err error) ErrorKind {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Kind
	}
	return ""
}
