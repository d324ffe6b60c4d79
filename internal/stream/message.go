package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultLogType is used for log messages without a type.
const DefaultLogType = "info"

// errNotObject is returned for messages that are valid JSON but not objects.
var errNotObject = errors.New("message is not a JSON object")

// TrafficData is one traffic counter sample pushed by the core.
type TrafficData struct {
	Upload   uint64 `json:"upload"`
	Download uint64 `json:"download"`
}

// LogData is one log line pushed by the core.
type LogData struct {
	Type    string `json:"log_type"`
	Payload string `json:"payload"`
}

// Sink receives decoded stream messages.
type Sink interface {
	SendTraffic(TrafficData)
	SendLog(LogData)
}

// DecodeTraffic decodes a traffic message. Counters that are missing or
// not unsigned integers read as zero.
func DecodeTraffic(data []byte) (TrafficData, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return TrafficData{}, fmt.Errorf("decode traffic: %w", err)
	}
	return TrafficData{
		Upload:   fieldUint(obj, "up"),
		Download: fieldUint(obj, "down"),
	}, nil
}

// DecodeLog decodes a log message. A missing type defaults to info and a
// missing payload to the empty string.
func DecodeLog(data []byte) (LogData, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return LogData{}, fmt.Errorf("decode log: %w", err)
	}
	return LogData{
		Type:    fieldString(obj, "type", DefaultLogType),
		Payload: fieldString(obj, "payload", ""),
	}, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func fieldUint(obj map[string]json.RawMessage, key string) uint64 {
	var v uint64
	if raw, ok := obj[key]; ok && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return 0
}

func fieldString(obj map[string]json.RawMessage, key, fallback string) string {
	var v string
	if raw, ok := obj[key]; ok && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return fallback
}
