// Package forwarder sends REST-style requests to the proxy core over
// pooled local connections.
//
// # Features
//
//   - HTTP/1.1 exchange on connections borrowed from a pool.ConnectionPool
//   - Bounded retries with a full pool flush before each retry
//   - Not-ready errors (core absent or refusing) fail fast without retry
//   - Serialization of configuration-mutating (PUT) requests through a
//     single-permit MutationGate
//   - Per-request spans and trace context propagation to the core
//
// # Usage
//
//	fwd := forwarder.New(p,
//	    forwarder.WithLogger(logger),
//	    forwarder.WithMetrics(metrics),
//	)
//	res, err := fwd.Forward(ctx, http.MethodGet, "/version", nil)
//	if err != nil {
//	    var fe *forwarder.ForwardError
//	    if errors.As(err, &fe) && fe.NotReady() {
//	        // core is not up yet
//	    }
//	    return err
//	}
//	fmt.Println(res.StatusCode, res.Body)
//
// A response with any HTTP status is a successful exchange. Only
// transport failures produce an error.
package forwarder
