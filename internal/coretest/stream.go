package coretest

import (
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream is a WebSocket endpoint of the fake core.
type Stream struct {
	mu        sync.Mutex
	conns     map[*websocket.Conn]struct{}
	lastQuery url.Values
	total     int
}

// Stream registers a WebSocket endpoint at path and returns it.
func (s *Server) Stream(path string) *Stream {
	st := &Stream{conns: make(map[*websocket.Conn]struct{})}

	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()

	s.mux.HandleFunc(path, st.serve)
	return st
}

func (st *Stream) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	st.mu.Lock()
	st.conns[conn] = struct{}{}
	st.lastQuery = r.URL.Query()
	st.total++
	st.mu.Unlock()

	// Read until the client goes away so close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	st.mu.Lock()
	delete(st.conns, conn)
	st.mu.Unlock()
	_ = conn.Close()
}

// Send writes msg as a text frame to every subscriber and returns how many
// received it.
func (st *Stream) Send(msg string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for conn := range st.conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err == nil {
			n++
		}
	}
	return n
}

// Subscribers returns the number of connected subscribers.
func (st *Stream) Subscribers() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.conns)
}

// Total returns the number of subscriptions ever accepted.
func (st *Stream) Total() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.total
}

// LastQuery returns the query of the most recent subscription.
func (st *Stream) LastQuery() url.Values {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastQuery
}

// WaitSubscribers waits until exactly n subscribers are connected.
func (st *Stream) WaitSubscribers(t testing.TB, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return st.Subscribers() == n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d subscribers", n)
}

func (st *Stream) closeAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for conn := range st.conns {
		_ = conn.Close()
	}
}
