package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quadrille/attribution/internal/handler" // import the handlers that implement the endpoints
)

// RegisterRoutes registers the operational routes on the provided Echo
// instance: the health check used by load balancers and the prometheus
// metrics endpoint scraped by monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAdmin registers the manual engine entry points under
// /v1/admin.  These mirror the batch operations one to one; they carry
// no authentication of their own and are meant to be reachable only
// through the deployment's internal network or gateway.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler) {
	g := e.Group("/v1/admin")
	// Run one attribution batch immediately instead of waiting for the scheduler.
	g.POST("/attribution/run", a.RunAttribution)
	// Preview the best-ranked eligible application for a session (deadline bypassed).
	g.GET("/sessions/:id/best", a.BestCandidate)
	// Renumber session ids into chronological order.
	g.POST("/rekey", a.RunRekey)
}
