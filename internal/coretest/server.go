package coretest

import (
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Server is a fake proxy core listening on a Unix domain socket.
type Server struct {
	// Endpoint is the socket path to dial.
	Endpoint string

	dir      string
	ln       net.Listener
	srv      *http.Server
	mux      *http.ServeMux
	accepted atomic.Int64
	requests atomic.Int64

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

// NewServer starts a fake core and registers its shutdown with t.Cleanup.
// The socket lives in a short temporary directory so the path stays under
// the platform limit for socket names.
func NewServer(t testing.TB) *Server {
	t.Helper()

	dir, err := os.MkdirTemp("", "core")
	require.NoError(t, err)

	endpoint := filepath.Join(dir, "core.sock")
	ln, err := net.Listen("unix", endpoint)
	require.NoError(t, err)

	s := &Server{
		Endpoint: endpoint,
		dir:      dir,
		ln:       ln,
		mux:      http.NewServeMux(),
	}
	s.srv = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.requests.Add(1)
			s.mux.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ConnState: func(_ net.Conn, state http.ConnState) {
			if state == http.StateNew {
				s.accepted.Add(1)
			}
		},
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fake core stopped: %v", err)
		}
	}()

	t.Cleanup(s.Close)

	return s
}

// Handle registers a handler for pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers a handler function for pattern.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

// HandleHangup registers a handler that drops the connection without
// answering, which the client sees as a broken exchange.
func (s *Server) HandleHangup(pattern string) {
	s.mux.HandleFunc(pattern, Hangup)
}

// Hangup drops the underlying connection without writing a response.
func Hangup(w http.ResponseWriter, _ *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("coretest: response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

// Accepted returns the number of connections the server has accepted.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Requests returns the number of requests the server has received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Close stops the server, closes every stream subscriber, and removes the
// socket. Dials after Close fail as not-ready.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	streams := s.streams
	s.mu.Unlock()

	_ = s.srv.Close()
	for _, st := range streams {
		st.closeAll()
	}
	_ = os.RemoveAll(s.dir)
}
