package handlers

import (
	"github.com/gin-gonic/gin"

	"novytek/api/middleware"
)

type Handlers struct {
	Track   *TrackHandlers
	Contact *ContactHandlers
	Catalog *CatalogHandlers
	Stats   *StatsHandlers
	Auth    *AuthHandlers
}

// RegisterRoutes mounts the public beacon and site endpoints and the
// admin-gated dashboard under /api.
func RegisterRoutes(r *gin.Engine, h Handlers, gate *middleware.AdminGate) {
	api := r.Group("/api")
	{
		track := api.Group("/track")
		{
			track.POST("/pageview", h.Track.PageView)
			track.POST("/scroll", h.Track.Scroll)
			track.POST("/click", h.Track.Click)
			track.POST("/ping", h.Track.Ping)
			track.POST("/leave", h.Track.Leave)
			track.POST("/conversion", h.Track.Conversion)
		}

		api.POST("/contact", h.Contact.Submit)
		api.GET("/services", h.Catalog.ListServices)
		api.GET("/service-categories", h.Catalog.ListCategories)

		api.POST("/login", h.Auth.Login)
		api.POST("/logout", h.Auth.Logout)

		admin := api.Group("/")
		admin.Use(gate.AdminRequired(false))
		{
			admin.GET("/me", h.Auth.Me)

			stats := admin.Group("/stats")
			{
				stats.GET("/summary", h.Stats.Summary)
				stats.GET("/visits-by-source", h.Stats.VisitsBySource)
				stats.GET("/visits-by-day", h.Stats.VisitsByDay)
				stats.GET("/conversion-rate-by-source", h.Stats.ConversionRateBySource)
				stats.GET("/top-pages", h.Stats.TopPages)
				stats.GET("/event-counts", h.Stats.EventCounts)
				stats.GET("/unique-sessions", h.Stats.UniqueSessions)
				stats.GET("/top-paths", h.Stats.TopPaths)
				stats.GET("/average-time-on-page", h.Stats.AverageTimeOnPage)
			}
		}

		api.GET("/admins", gate.AdminRequired(true), h.Auth.ListAdmins)
	}
}
