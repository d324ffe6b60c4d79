package forwarder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// coreHost is the Host header sent to the core. The core serves a single
// local endpoint, so the value is informational.
const coreHost = "localhost"

// aLongTimeAgo is a deadline in the past, used to abort blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Result is the core's response to a forwarded request.
type Result struct {
	StatusCode int
	Body       string
}

// newRequest builds the HTTP/1.1 request written to the core.
func newRequest(ctx context.Context, method, path string, body *string) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var rd io.Reader = http.NoBody
	if body != nil {
		rd = strings.NewReader(*body)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+coreHost+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Host = coreHost
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	observability.InjectTraceContext(ctx, req.Header)

	return req, nil
}

// exchange writes one request on conn and reads the full response.
// reusable is false when the connection must not go back to the pool.
func exchange(ctx context.Context, conn net.Conn, req *http.Request) (res Result, reusable bool, err error) {
	// Cancellation aborts blocked reads and writes.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	defer func() {
		if !stop() {
			reusable = false
		}
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("exchange aborted: %w", context.Cause(ctx))
		}
	}()

	bw := bufio.NewWriter(conn)
	if err := req.Write(bw); err != nil {
		return Result{}, false, fmt.Errorf("write request: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return Result{}, false, fmt.Errorf("write request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return Result{}, false, fmt.Errorf("read response: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return Result{}, false, fmt.Errorf("read response body: %w", err)
	}

	reusable = !resp.Close && br.Buffered() == 0

	return Result{StatusCode: resp.StatusCode, Body: string(data)}, reusable, nil
}
