// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier/internal/http/handlers"
	"courier/internal/http/middleware"
	"courier/internal/logger"
	"courier/internal/modules/booking"
	"courier/internal/modules/matching"
	"courier/internal/modules/tracking"
	"courier/internal/ws"
)

type RouterDeps struct {
	Booking  *booking.Service
	Matching *matching.Service
	Tracking *tracking.Service
	Hub      *ws.Hub
	Log      logger.ILogger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	bookingHandler := handlers.NewBookingHandler(deps.Booking)
	bookings := r.Group("/api/matching/bookings")
	{
		bookings.POST("", bookingHandler.Create)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.PATCH("/:id", bookingHandler.Edit)
		bookings.POST("/:id/cancel", bookingHandler.Cancel)
		bookings.POST("/:id/respond", bookingHandler.Respond)
		bookings.POST("/:id/progress", bookingHandler.Progress)
		bookings.GET("/:id/timers", bookingHandler.Timers)
		bookings.POST("/:id/complete", bookingHandler.Complete)
		bookings.GET("/by-delivery/:deliveryID", bookingHandler.GetByDelivery)
		bookings.GET("/by-customer/:customerID", bookingHandler.ListByCustomer)
	}

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	tracks := r.Group("/api/tracking")
	{
		tracks.POST("/events", trackingHandler.CreateEvent)
		tracks.GET("/bookings/:id", trackingHandler.TimelineByBooking)
		tracks.GET("/bookings/:id/location", trackingHandler.CurrentLocation)
		tracks.GET("/deliveries/:id", trackingHandler.TimelineByDelivery)
	}

	riderHandler := handlers.NewRiderHandler(deps.Matching)
	riders := r.Group("/api/riders")
	{
		riders.POST("/:id/online", riderHandler.GoOnline)
		riders.POST("/:id/offline", riderHandler.GoOffline)
		riders.PUT("/:id/location", riderHandler.UpdateLocation)
		riders.GET("/:id", riderHandler.Get)
	}

	if deps.Hub != nil {
		r.GET("/ws", gin.WrapH(deps.Hub))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
