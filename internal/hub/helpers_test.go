package hub

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func absentEndpoint(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "hub")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "absent.sock")
}

// chanSink delivers everything the hub produces on channels.
type chanSink struct {
	responses chan Response
	results   chan StreamResult
	traffic   chan TrafficData

	mu   sync.Mutex
	logs []LogData
}

func newChanSink() *chanSink {
	return &chanSink{
		responses: make(chan Response, 16),
		results:   make(chan StreamResult, 16),
		traffic:   make(chan TrafficData, 16),
	}
}

func (s *chanSink) SendResponse(r Response)         { s.responses <- r }
func (s *chanSink) SendStreamResult(r StreamResult) { s.results <- r }
func (s *chanSink) SendTraffic(d TrafficData)       { s.traffic <- d }

func (s *chanSink) SendLog(l LogData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
}

func (s *chanSink) response(t *testing.T) Response {
	t.Helper()

	select {
	case r := <-s.responses:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for response")
		return Response{}
	}
}

func (s *chanSink) result(t *testing.T) StreamResult {
	t.Helper()

	select {
	case r := <-s.results:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream result")
		return StreamResult{}
	}
}
