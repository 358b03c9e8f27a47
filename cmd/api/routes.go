package main

import (
	"call-inbox/internal/httpapi"
	"call-inbox/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal/inbox.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// Identity echo for token debugging.
		v1.GET("/me", whoAmI)

		calls := v1.Group("/calls")
		{
			calls.GET("", h.ListCalls)
			calls.GET("/days", h.Days)
			calls.GET("/summary", h.Summary)
			calls.GET("/:id", h.GetCall)
			calls.GET("/:id/history", h.History)
		}

		// Mutations go upstream; viewers are read-only.
		mutate := calls.Group("")
		mutate.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleAdmin))
		{
			mutate.POST("/refresh", h.Refresh)
			mutate.POST("/:id/archive", h.ToggleArchive)
			mutate.POST("/:id/notes", h.AddNote)
		}
	}
}
