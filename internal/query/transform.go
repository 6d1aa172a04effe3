package query

import (
	"encoding/json"
	"strings"
)

// IsActive reports whether a status value means the query is still running.
func (s *StatusResponse) IsActive() bool {
	return strings.EqualFold(s.Status, StatusRunning)
}

// Text flattens the response into one human readable message.
func (e *ErrorResponse) Text() string {
	parts := make([]string, 0, len(e.Errors)+1)
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	for _, d := range e.Errors {
		msg := d.Description
		if d.Name != "" {
			msg = d.Name + ": " + msg
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// Code returns the first error code carried by the response, if any.
func (e *ErrorResponse) Code() string {
	for _, d := range e.Errors {
		if d.Code != "" {
			return d.Code
		}
	}
	return ""
}

// ParseErrorBody decodes an error body. Bodies that are not JSON are kept
// verbatim as the message.
func ParseErrorBody(body []byte) *ErrorResponse {
	resp := &ErrorResponse{}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(body, resp) == nil {
		if resp.Message != "" || len(resp.Errors) > 0 {
			return resp
		}
	}
	return &ErrorResponse{Message: trimmed}
}
