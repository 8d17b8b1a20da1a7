package api

import (
	stdhttp "net/http"

	intconfig "conductor/internal/config"
	h "conductor/internal/http/handlers"
	"conductor/internal/http/middleware"
	"conductor/internal/utils"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts the device API. metrics may be nil.
func NewRouter(env intconfig.Env, hd *h.Handler, metrics stdhttp.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Warn("failed to set trusted proxies", "error", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"code":   "not_found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)
		api.GET("/db-check", hd.DBCheck)
		api.GET("/routes", hd.APIRoutes)

		auth := api.Group("", middleware.AuthRequired(env.JWTSecret))
		admin := middleware.RequireRoles(env.JWTSecret, "admin")

		// Reference data
		auth.GET("/routes/:id", hd.GetRoute)
		auth.GET("/prices", hd.ListPrices)
		auth.POST("/reference", admin, hd.ImportReference)

		// Trips
		trips := auth.Group("/trips")
		trips.GET("", hd.ListTrips)
		trips.POST("", hd.OpenTrip)
		trips.GET("/active", hd.ActiveTrip)
		trips.GET("/:id", hd.GetTrip)
		trips.POST("/:id/close", hd.CloseTrip)
		trips.GET("/:id/seats", hd.SeatUsage)
		trips.GET("/:id/breakdown", hd.Breakdown)
		trips.GET("/:id/report", hd.TripReportPDF)

		// Tickets
		trips.GET("/:id/tickets", hd.ListTickets)
		trips.POST("/:id/tickets", hd.IssueTicket)
		trips.POST("/:id/quote", hd.QuoteTicket)
		trips.GET("/:id/tickets/:seq", hd.GetTicket)
		trips.POST("/:id/tickets/:seq/cancel", hd.CancelTicket)
		trips.POST("/:id/tickets/:seq/depart", hd.MarkDeparted)
		trips.GET("/:id/tickets/:seq/receipt", hd.TicketReceiptPDF)

		// Expenses
		trips.GET("/:id/expenses", hd.ListExpenses)
		trips.POST("/:id/expenses", hd.RecordExpense)

		// Location
		auth.POST("/location", hd.PushLocation)
		auth.GET("/location/current", hd.CurrentLocation)

		// Sync queue
		syncGroup := auth.Group("/sync")
		syncGroup.GET("/status", hd.SyncStatus)
		syncGroup.POST("/drain", hd.DrainSync)
		syncGroup.POST("/purge", admin, hd.PurgeSync)
	}

	h.SetRouter(r)
	return r
}
