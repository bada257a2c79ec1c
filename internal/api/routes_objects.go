package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/ftpstore/internal/handlers"
)

func registerObjectRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewObjectHandler(deps.Storage, deps.Sizes, deps.TempDir)
	if err != nil {
		return err
	}

	objects := api.Group("/objects")
	{
		objects.GET("/*path", handler.Resolve)
		objects.PUT("/*path", handler.Put)
		objects.DELETE("/*path", handler.Delete)
	}
	return nil
}
