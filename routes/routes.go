package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campsite/config"
	"campsite/handlers"
	"campsite/middleware"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "site": config.AppConfig.SiteName})
	})
}

// RegisterBookingRoutes sets up the booking endpoints. Reads are open;
// every mutation requires an admin token.
func RegisterBookingRoutes(r *gin.Engine, bh *handlers.BookingHandler) {
	api := r.Group("/api/bookings")
	{
		api.GET("", bh.ListBookingsHandler)
		api.GET("/states", bh.GetStatesHandler)
		api.GET("/archive", bh.GetArchiveHandler)
		api.GET("/:id", bh.GetBookingHandler)

		protected := api.Group("")
		protected.Use(middleware.JWTAuthAdminMiddleware())
		protected.POST("/:id/status", bh.ChangeStatusHandler)
		protected.PATCH("/:id", bh.ModifyFieldsHandler)
		protected.POST("/pull", bh.PullSheetsHandler)
		protected.POST("/sweep", bh.SweepHandler)
		protected.POST("/calendar/fix", bh.FixCalendarHandler)
		protected.POST("/reload", bh.ReloadHandler)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, bh *handlers.BookingHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterBookingRoutes(r, bh)
}
