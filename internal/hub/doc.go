// Package hub is the long-lived application context of the bridge.
//
// A Hub owns one connection pool with its health checker, one request
// forwarder sharing a mutation gate, one streaming manager, and a
// dispatcher that runs requests off the caller's goroutine. Results are
// delivered to a Sink.
//
// # Usage
//
//	h := hub.New(hub.DefaultConfig(), sink,
//	    hub.WithLogger(logger),
//	    hub.WithMetrics(metrics),
//	)
//	h.Start(ctx)
//	defer h.Close()
//
//	_ = h.Handle(hub.Request{ID: 1, Method: "GET", Path: "/version"})
//
// CleanupAllNetworkResources tears down every stream and pooled
// connection without closing the hub, for use when the core restarts.
package hub
