package server

import (
	"context"
	"net/http"
	"time"

	"classbook/internal/auth"
	"classbook/internal/booking"
	"classbook/internal/calendar"
	"classbook/internal/classsession"
	"classbook/internal/config"
	"classbook/internal/member"
	"classbook/internal/noshow"
	"classbook/internal/user"

	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP entry points the router mounts.
type Handlers struct {
	Users    *user.Handler
	Sessions *classsession.Handler
	Bookings *booking.Handler
	NoShows  *noshow.Handler
	Calendar *calendar.Handler
	Passes   *member.Handler
	Queue    QueueInspector
}

type Server struct {
	router *gin.Engine
	config *config.Config
	http   *http.Server
}

func New(cfg *config.Config, h Handlers) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	public := router.Group("/auth")
	{
		public.POST("/register", h.Users.Register)
		public.POST("/login", h.Users.Login)
		public.POST("/refresh", h.Users.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.Users.GetMe)
		protected.PUT("/me/payment-customer", h.Users.SetPaymentCustomer)
		protected.GET("/passes", h.Passes.ListMyPasses)

		protected.GET("/sessions", h.Sessions.ListSessions)
		protected.GET("/sessions/:sessionID", h.Sessions.GetSession)
		protected.POST("/sessions/:sessionID/bookings", h.Bookings.RequestBooking)
		protected.GET("/sessions/:sessionID/waitlist", h.Bookings.GetWaitlist)
		protected.GET("/sessions/:sessionID/availability", h.Bookings.GetAvailability)

		protected.GET("/bookings", h.Bookings.ListMyBookings)
		protected.POST("/bookings/:bookingID/cancel", h.Bookings.CancelBooking)
		protected.POST("/waitlist/:entryID/withdraw", h.Bookings.WithdrawWaitlist)
	}

	organizerMiddleware := auth.RequireRole(auth.RoleOrganizer)
	organizer := router.Group("/organizer")
	organizer.Use(authMiddleware, organizerMiddleware)
	{
		organizer.POST("/sessions", h.Sessions.CreateSession)
		organizer.PATCH("/sessions/:id/window", h.Sessions.UpdateWindow)
		organizer.PATCH("/sessions/:id/capacity", h.Sessions.UpdateCapacity)
		organizer.GET("/sessions/:id/bookings", h.Bookings.ListSessionBookings)
		organizer.POST("/sessions/:id/promote", h.Bookings.PromoteWaitlist)
		organizer.POST("/bookings/:bookingID/check-in", h.Bookings.CheckIn)

		organizer.POST("/conflicts", h.Calendar.CheckConflicts)
		organizer.GET("/calendar/integrations", h.Calendar.ListIntegrations)
		organizer.POST("/calendar/integrations", h.Calendar.CreateIntegration)
		organizer.DELETE("/calendar/integrations/:id", h.Calendar.DisableIntegration)
		organizer.POST("/calendar/integrations/:id/busy-periods", h.Calendar.SyncBusyPeriods)

		organizer.POST("/no-shows/process", h.NoShows.ProcessNoShows)
		organizer.GET("/no-shows/analytics", h.NoShows.GetAnalytics)
		organizer.GET("/settings/no-show", h.NoShows.GetSettings)
		organizer.PUT("/settings/no-show", h.NoShows.UpdateSettings)

		organizer.POST("/passes", h.Passes.CreatePass)
		organizer.GET("/notifications/queue", NotificationQueue(h.Queue))
	}

	return &Server{
		router: router,
		config: cfg,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
