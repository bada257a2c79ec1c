package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ftpstore/internal/handlers"
	"github.com/charlesng35/ftpstore/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, mon *monitoring.Module) {
	manager := mon.Health()

	registerHealthEndpoints(r, manager)
	registerHealthEndpoints(r.Group("/api"), manager)
}

func registerHealthEndpoints(router gin.IRouter, manager *monitoring.HealthManager) {
	router.GET("/health", handlers.Health(manager))
	router.GET("/health/live", handlers.Liveness(manager))
	router.GET("/health/ready", handlers.Readiness(manager))
}
