package main

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/coreipc/internal/health"
	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// newAdminRouter builds the admin routes: metrics, health probes, and a
// pool snapshot.
func newAdminRouter(app *application) *gin.Engine {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.Use(gin.Recovery())

	checks := health.NewHandler(app.logger, health.WithVersion(version))
	checks.AddCheck(health.CoreCheck(app.hub.Forwarder()))
	checks.AddCheck(health.QueueCheck(app.hub.Dispatcher().Pending, app.config.Spec.Dispatcher.QueueSize))
	checks.RegisterRoutes(engine)

	engine.GET("/metrics", gin.WrapH(app.metrics.Handler()))
	engine.GET("/debug/pool", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.hub.Pool().Stats())
	})

	return engine
}

// createAdminServer creates the admin HTTP server.
func createAdminServer(app *application) *http.Server {
	addr := app.config.Spec.Metrics.Address

	app.logger.Info("starting admin server",
		observability.String("address", addr),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           newAdminRouter(app),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runAdminServer runs the admin HTTP server until it is shut down.
func runAdminServer(server *http.Server, logger observability.Logger) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("admin server error", observability.Error(err))
	}
}

// startAdminServerIfEnabled starts the admin server if metrics are enabled.
func startAdminServerIfEnabled(app *application) {
	if !app.config.Spec.Metrics.Enabled {
		return
	}

	app.adminServer = createAdminServer(app)
	go runAdminServer(app.adminServer, app.logger)
}
