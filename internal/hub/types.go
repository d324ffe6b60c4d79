package hub

import (
	"github.com/vyrodovalexey/coreipc/internal/stream"
)

// Request is a REST call to forward to the core.
type Request struct {
	ID     int64   `json:"request_id"`
	Method string  `json:"method"`
	Path   string  `json:"path"`
	Body   *string `json:"body,omitempty"`
}

// Response answers a Request. StatusCode is zero when no response was
// received from the core.
type Response struct {
	ID           int64  `json:"request_id"`
	StatusCode   int    `json:"status_code"`
	Body         string `json:"body"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TrafficData is one traffic counter sample.
type TrafficData = stream.TrafficData

// LogData is one core log line.
type LogData = stream.LogData

// StreamResult reports the outcome of a stream start or stop.
type StreamResult struct {
	Kind         string `json:"kind"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Sink receives everything the hub produces.
type Sink interface {
	stream.Sink
	SendResponse(Response)
	SendStreamResult(StreamResult)
}
