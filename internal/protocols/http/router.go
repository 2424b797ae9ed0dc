package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booktrack/internal/core"
	"booktrack/pkg/config"
	"booktrack/pkg/models"
)

// Deps are the services behind the REST API. Notifications and Ping are
// optional.
type Deps struct {
	Plans         core.PlanService
	Timer         core.TimerService
	ReadingLogs   core.ReadingLogService
	Badges        core.BadgeService
	Rankings      core.RankingService
	Books         core.BookService
	Users         core.UserService
	Statistics    core.StatisticsService
	Verifier      core.TokenVerifier
	Notifications gin.HandlerFunc
	Ping          func(ctx context.Context) error
}

// Server manages the HTTP REST API
type Server struct {
	router  *gin.Engine
	config  *config.Config
	deps    Deps
	limiter *userLimiter
}

// NewServer creates a new HTTP server with all handlers
func NewServer(cfg *config.Config, deps Deps) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware())
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	s := &Server{
		router:  router,
		config:  cfg,
		deps:    deps,
		limiter: newUserLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	if s.deps.Notifications != nil {
		s.router.GET("/ws/notifications", s.deps.Notifications)
	}

	v1 := s.router.Group("/api/v1", AuthMiddleware(s.deps.Verifier), s.limiter.middleware())
	{
		plans := v1.Group("/plans")
		{
			plans.POST("/preview", s.previewPlan)
			plans.POST("", s.createPlan)
			plans.GET("", s.listPlans)
			plans.GET("/today", s.todayPlans)
			plans.GET("/calendar", s.calendarPlans)
			plans.GET("/date/:date", s.plansByDate)
			plans.POST("/delete", s.deletePlans)
			plans.GET("/:id", s.getPlan)
			plans.PATCH("/:id/abandon", s.abandonPlan)
			plans.PATCH("/:id/extend", s.extendPlan)
			plans.DELETE("/:id", s.deletePlan)

			plans.GET("/:id/time", s.timeStats)
			plans.GET("/:id/time/:date", s.timeDetails)

			plans.POST("/:id/logs", s.createReadingLog)
			plans.GET("/:id/logs", s.listReadingLogs)
		}

		logs := v1.Group("/logs")
		{
			logs.GET("/scraps", s.listScraps)
			logs.GET("/scraps/books", s.scrapsByBook)
			logs.POST("/delete", s.deleteReadingLogs)
			logs.GET("/:id", s.getReadingLog)
			logs.PATCH("/:id", s.updateReadingLog)
			logs.DELETE("/:id", s.deleteReadingLog)
		}

		v1.POST("/wishlist/:isbn", s.addWishlist)
		v1.DELETE("/wishlist/:isbn", s.removeWishlist)

		v1.POST("/timer/start", s.startTimer)
		v1.POST("/timer/stop", s.stopTimer)

		v1.GET("/badges", s.listBadges)
		v1.GET("/badges/me", s.myBadges)
		v1.GET("/me/stats", s.myStats)
		v1.GET("/me/reading-stats", s.readingStats)
		v1.POST("/me/devices", s.registerDevice)

		v1.GET("/rankings", s.leaderboard)
		v1.GET("/rankings/me", s.myRanking)

		v1.GET("/books/search", s.searchBooks)
		v1.GET("/books/:isbn", s.getBook)
	}
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return s.HTTPServer(addr).ListenAndServe()
}

// HTTPServer wraps the router with the configured timeouts so callers can
// shut it down gracefully
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// healthCheck reports liveness and database reachability
func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}

// respond writes the success envelope
func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.NewSuccessResponse(data))
}

// respondMessage writes a success envelope without a payload
func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Timestamp: time.Now(),
	})
}
