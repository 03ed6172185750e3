package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/queue"
)

// Server exposes the operational API: health probe and delivery statistics.
// It carries no user data and no mutating endpoints.
type Server struct {
	config *config.ServerConfig
	logger *log.Logger
	store  *db.Store
	queue  *queue.Manager

	httpServer *http.Server
	limiter    *rate.Limiter
	startedAt  time.Time
}

// NewServer creates the stats server.
func NewServer(cfg *config.ServerConfig, store *db.Store, q *queue.Manager, logger *log.Logger) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		store:     store,
		queue:     q,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), cfg.RateLimitBurstSize),
		startedAt: time.Now().UTC(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())
	router.Use(s.rateLimitMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", s.handleStats)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return s
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Stats server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stats server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully within the configured window.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.config.GracefulStop)*time.Second)
	defer cancel()

	s.logger.Info("Stats server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.DB().HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	subscriptions, err := s.store.CountSubscriptions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "stats unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":         s.queue.Snapshot(),
		"subscriptions": subscriptions,
	})
}
