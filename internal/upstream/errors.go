package upstream

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	// FallbackStatus is returned to callers when no upstream status is available.
	FallbackStatus = http.StatusBadGateway

	// NoResponseMessage describes a call that never received a response.
	NoResponseMessage = "No response received from upstream service"
)

// Error is a failed upstream call. StatusCode is zero when no response was
// received; Body then is empty. Sent is false when the request could not even
// be built.
type Error struct {
	Op         string
	Sent       bool
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	return e.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the upstream answered at all.
func (e *Error) HasResponse() bool {
	return e.StatusCode != 0
}

// Status is the HTTP status to return to the caller: the upstream's own
// status, or FallbackStatus when there was no response.
func (e *Error) Status() int {
	if e.StatusCode == 0 {
		return FallbackStatus
	}
	return e.StatusCode
}

// Message is the human-readable error string placed in fallback payloads.
func (e *Error) Message() string {
	switch {
	case e.HasResponse():
		return "Upstream " + strconv.Itoa(e.StatusCode) + ": " + string(jsonText(e.Body))
	case e.Sent:
		return NoResponseMessage
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "Unknown error"
	}
}

// Payload returns the JSON body to send to the caller: the upstream body
// unchanged when it is a JSON object, otherwise {detail, error}.
func (e *Error) Payload(detail string) []byte {
	if isJSONObject(e.Body) {
		return e.Body
	}
	return FallbackPayload(detail, e.Message())
}

// FallbackPayload encodes {detail, error}.
func FallbackPayload(detail, message string) []byte {
	b, err := json.Marshal(struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}{detail, message})
	if err != nil {
		// two strings always marshal
		return []byte(`{"detail":"` + detail + `"}`)
	}
	return b
}

// isJSONObject reports whether b is a well-formed JSON object.
func isJSONObject(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// jsonText renders b as compact JSON. Bodies that are not JSON are rendered
// as a JSON string.
func jsonText(b []byte) []byte {
	if json.Valid(b) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err == nil {
			return buf.Bytes()
		}
	}
	s, _ := json.Marshal(string(b))
	return s
}
