package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vyrodovalexey/coreipc/internal/hub"
	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// Envelope types.
const (
	TypeRequest      = "request"
	TypeStartStream  = "start_stream"
	TypeStopStream   = "stop_stream"
	TypeCleanup      = "cleanup"
	TypeResponse     = "response"
	TypeTraffic      = "traffic"
	TypeLog          = "log"
	TypeStreamResult = "stream_result"
	TypeError        = "error"
)

// Handler executes what the front-end asks for.
type Handler interface {
	Handle(req hub.Request) error
	StartStream(ctx context.Context, kind string) hub.StreamResult
	StopStream(kind string) hub.StreamResult
	CleanupAllNetworkResources() hub.CleanupStats
}

// Envelope is one line of the bridge protocol.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type streamCommand struct {
	Kind string `json:"kind"`
}

type errorMessage struct {
	Message string `json:"message"`
}

// Codec reads commands from r and writes envelopes to w.
type Codec struct {
	r      *bufio.Reader
	logger observability.Logger

	mu  sync.Mutex
	w   io.Writer
	err error

	wg sync.WaitGroup
}

// Option is a functional option for configuring the codec.
type Option func(*Codec)

// WithLogger sets the logger for the codec.
func WithLogger(logger observability.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// NewCodec creates a new codec.
func NewCodec(r io.Reader, w io.Writer, opts ...Option) *Codec {
	c := &Codec{
		r:      bufio.NewReader(r),
		w:      w,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(observability.String("component", "bridge"))

	return c
}

// Serve reads envelopes until r is exhausted or ctx is done, passing each
// to h. It waits for stream commands it started before returning.
func (c *Codec) Serve(ctx context.Context, h Handler) error {
	defer c.wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := c.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			c.dispatch(ctx, h, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Info("bridge input closed")
				return nil
			}
			return fmt.Errorf("read envelope: %w", err)
		}
	}
}

func (c *Codec) dispatch(ctx context.Context, h Handler, line []byte) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		c.reject("", fmt.Errorf("malformed envelope: %w", err))
		return
	}

	switch env.Type {
	case TypeRequest:
		var req hub.Request
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.reject(env.Type, fmt.Errorf("malformed request: %w", err))
			return
		}
		if err := h.Handle(req); err != nil {
			c.SendResponse(hub.Response{ID: req.ID, ErrorMessage: err.Error()})
		}

	case TypeStartStream, TypeStopStream:
		var cmd streamCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			c.reject(env.Type, fmt.Errorf("malformed stream command: %w", err))
			return
		}
		start := env.Type == TypeStartStream
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if start {
				h.StartStream(ctx, cmd.Kind)
			} else {
				h.StopStream(cmd.Kind)
			}
		}()

	case TypeCleanup:
		c.write(TypeCleanup, h.CleanupAllNetworkResources())

	default:
		c.reject(env.Type, fmt.Errorf("unknown envelope type %q", env.Type))
	}
}

func (c *Codec) reject(kind string, err error) {
	c.logger.Warn("rejected envelope",
		observability.String("type", kind),
		observability.Error(err),
	)
	c.write(TypeError, errorMessage{Message: err.Error()})
}

// SendResponse writes a response envelope.
func (c *Codec) SendResponse(r hub.Response) {
	c.write(TypeResponse, r)
}

// SendTraffic writes a traffic envelope.
func (c *Codec) SendTraffic(d hub.TrafficData) {
	c.write(TypeTraffic, d)
}

// SendLog writes a log envelope.
func (c *Codec) SendLog(d hub.LogData) {
	c.write(TypeLog, d)
}

// SendStreamResult writes a stream result envelope.
func (c *Codec) SendStreamResult(r hub.StreamResult) {
	c.write(TypeStreamResult, r)
}

// Err returns the first write error, if any.
func (c *Codec) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Codec) write(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to encode envelope",
			observability.String("type", kind),
			observability.Error(err),
		)
		return
	}

	line, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return
	}
	line = append(line, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	if _, err := c.w.Write(line); err != nil {
		c.err = err
		c.logger.Error("bridge output failed",
			observability.String("type", kind),
			observability.Error(err),
		)
	}
}
