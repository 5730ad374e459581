package pushover

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the gateway's JSON reply.
type Response struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
	Receipt string `json:"receipt"`
	Errors  []any  `json:"errors"`

	HTTPStatus int `json:"-"`
}

// FirstError returns the first gateway-reported error, or "".
func (r *Response) FirstError() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	if s, ok := r.Errors[0].(string); ok {
		return s
	}
	return fmt.Sprint(r.Errors[0])
}

// DecodeResponse parses a gateway body. It returns the decoded response together
// with a gateway error when the body carries a non-empty errors array.
func DecodeResponse(httpStatus int, body []byte) (*Response, error) {
	trimmed := strings.TrimSpace(string(body))

	var resp Response
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil, &ProtocolError{
			Kind:       KindParse,
			StatusCode: httpStatus,
			Message:    "failed to parse gateway response",
			Cause:      err,
		}
	}
	resp.HTTPStatus = httpStatus

	if len(resp.Errors) > 0 {
		return &resp, &ProtocolError{
			Kind:       KindGateway,
			StatusCode: httpStatus,
			Message:    resp.FirstError(),
		}
	}

	return &resp, nil
}

type soundsResponse struct {
	Status int               `json:"status"`
	Sounds map[string]string `json:"sounds"`
	Errors []any             `json:"errors"`
}
