package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ftpstore/internal/handlers"
	"github.com/charlesng35/ftpstore/internal/middleware"
	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
)

// Dependencies are the collaborators served by the HTTP API.
type Dependencies struct {
	Storage    storage.Storage
	Monitoring *monitoring.Module
	Sizes      thumbnail.Sizes
	TempDir    string
	PoolSize   int
	Root       string
}

// NewRouter builds the Gin engine, wires middleware and registers the health,
// metrics, status and object routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage must be provided")
	}
	if deps.Monitoring == nil {
		return nil, fmt.Errorf("monitoring module must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	registerHealthRoutes(r, deps.Monitoring)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(deps.Monitoring.Handler()))

	api := r.Group("/api")
	api.GET("/status", handlers.NewStatusHandler(deps.PoolSize, deps.Root).Summary)

	if err := registerObjectRoutes(api, deps); err != nil {
		return nil, err
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
