// Package coretest provides an in-process stand-in for the proxy core,
// served on a Unix domain socket, for use in tests.
//
// The server answers REST requests through an http.ServeMux and exposes
// WebSocket streams whose messages are pushed by the test:
//
//	core := coretest.NewServer(t)
//	core.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
//	    _, _ = w.Write([]byte(`{"version":"test"}`))
//	})
//	traffic := core.Stream("/traffic")
//	// ... start a subscription against core.Endpoint ...
//	traffic.WaitSubscribers(t, 1)
//	traffic.Send(`{"up":1,"down":2}`)
package coretest
