// Package health provides liveness, readiness, and health endpoints for
// the bridge's admin server.
//
// # Features
//
//   - Liveness endpoint (/live) that only reports the process is up
//   - Readiness endpoint (/ready) that runs every registered check
//   - Health endpoint (/health) with checks, uptime, and version
//   - CoreCheck asks the proxy core for /version over the pool
//
// # Usage
//
//	h := health.NewHandler(logger, health.WithVersion(version))
//	h.AddCheck(health.CoreCheck(forwarder))
//
//	engine := gin.New()
//	h.RegisterRoutes(engine)
package health
