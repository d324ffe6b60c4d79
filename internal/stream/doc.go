// Package stream manages long-lived WebSocket subscriptions to the proxy
// core's traffic and log feeds.
//
// # Features
//
//   - Client dials WebSocket endpoints over the local transport and
//     tracks each subscription by an opaque Handle
//   - Connect attempts pass a circuit breaker so a dead core fails fast
//   - Manager keeps one current subscription per Kind and decodes
//     messages for a Sink
//   - Malformed messages are dropped and counted, never delivered
//
// # Usage
//
//	m := stream.NewManager(endpoint, sink,
//	    stream.WithManagerLogger(logger),
//	    stream.WithManagerMetrics(metrics),
//	)
//	if _, err := m.Start(ctx, stream.KindTraffic); err != nil {
//	    return err
//	}
//	defer m.CleanupAll()
//
// Starting a kind that already has a live subscription replaces it: the
// previous handle is disconnected once the new one is connected.
package stream
