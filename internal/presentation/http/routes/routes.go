// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hutchutchutch/fmath-sub002/internal/application/container"
	"github.com/hutchutchutch/fmath-sub002/internal/presentation/http/handlers"
	"github.com/hutchutchutch/fmath-sub002/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	sessionHandlers := handlers.NewSessionHandlers(c.SessionService, c.Logger, c.PerfTracker)
	authHandlers := handlers.NewAuthHandlers(c.AuthService, c.Logger, c.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(c.DB, c.PerfTracker)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/token", authHandlers.PostToken)
		api.GET("/health", healthHandlers.GetHealth)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware())
		{
			authed.POST("/session/transition", sessionHandlers.PostTransition)
			authed.GET("/session", sessionHandlers.GetSession)
		}
	}

	return r
}
