package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	plannerDelivery "steward-backend/internal/planner/delivery"
)

func SetupRoutes(r *gin.Engine, plannerHandler *plannerDelivery.PlannerHandler) {
	api := r.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Planning routes
		api.GET("/what-if", plannerHandler.WhatIf)
		api.POST("/full-sort", plannerHandler.FullSort)
		api.POST("/process", plannerHandler.Process)

		// Session and undo routes
		api.POST("/undo/:token", plannerHandler.Undo)
		api.GET("/sessions/:id", plannerHandler.GetSession)

		// Calendar routes
		api.GET("/events", plannerHandler.GetEvents)
		api.GET("/conflicts", plannerHandler.GetConflicts)
		api.POST("/conflicts/:id/resolve", plannerHandler.ResolveConflict)

		// Diagnostics
		api.GET("/diagnostics", plannerHandler.Diagnostics)
	}
}
