package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/careline/medrag/internal/middleware"
)

type RouterDeps struct {
	Query        *QueryHandler
	Search       *SearchHandler
	Knowledge    *KnowledgeHandler
	QueryQPS     float64
	QueryBurst   int
	AdminEnabled bool
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.RequestID())

	queryGroup := api.Group("")
	queryGroup.Use(middleware.RateLimit(deps.QueryQPS, deps.QueryBurst))
	queryGroup.POST("/query", deps.Query.Query)
	queryGroup.POST("/search", deps.Search.Search)

	api.GET("/knowledge/stats", deps.Knowledge.Stats)
	api.GET("/knowledge/documents/:id", deps.Knowledge.Get)
	api.GET("/metrics/optimizer", deps.Query.Metrics)

	if deps.AdminEnabled {
		api.POST("/knowledge/documents", deps.Knowledge.Create)
		api.POST("/knowledge/reload", deps.Knowledge.Reload)
	}

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
