package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/pair_quiz/internal/cache"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/middleware"
	"github.com/mroshb/pair_quiz/internal/services"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"gorm.io/gorm"
)

// HandlerManager owns the HTTP handlers and builds the router.
type HandlerManager struct {
	Config  *config.Config
	DB      *gorm.DB
	Cache   *cache.RedisCache
	Limiter *middleware.RateLimiter

	PairGames  *PairGameHandler
	Statistics *StatisticsHandler
}

// NewHandlerManager wires the handlers. redisCache may be nil.
func NewHandlerManager(
	cfg *config.Config,
	db *gorm.DB,
	redisCache *cache.RedisCache,
	games *services.PairGameService,
	stats *services.StatisticsService,
) *HandlerManager {
	return &HandlerManager{
		Config:     cfg,
		DB:         db,
		Cache:      redisCache,
		Limiter:    middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerIP, cfg.RateLimitWindow),
		PairGames:  NewPairGameHandler(games),
		Statistics: NewStatisticsHandler(stats),
	}
}

// Router returns the gin engine serving /health and the /pair-game-quiz API.
func (m *HandlerManager) Router() *gin.Engine {
	if m.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), m.Limiter.IPRateLimit())

	router.GET("/health", m.Health)

	api := router.Group("/pair-game-quiz")
	api.Use(middleware.AuthMiddleware(m.Config.JWTSecret), m.Limiter.UserRateLimit())
	{
		pairs := api.Group("/pairs")
		{
			pairs.GET("/my-current", m.PairGames.MyCurrent)
			pairs.GET("/my", m.PairGames.MyGames)
			pairs.GET("/:id", m.PairGames.GetByID)
			pairs.POST("/connection", m.PairGames.Connect)
			pairs.POST("/my-current/answers", m.PairGames.SubmitAnswer)
		}

		users := api.Group("/users")
		{
			users.GET("/my-statistic", m.Statistics.MyStatistic)
			users.GET("/top", m.Statistics.Top)
		}
	}

	return router
}

// Health reports whether the database and, when configured, Redis respond.
func (m *HandlerManager) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if sqlDB, err := m.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["status"], status["database"] = "degraded", "unavailable"
		code = http.StatusServiceUnavailable
	}
	if m.Cache != nil {
		status["redis"] = "ok"
		if err := m.Cache.Ping(ctx); err != nil {
			status["status"], status["redis"] = "degraded", "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, status)
}

// Close releases background resources of the handlers.
func (m *HandlerManager) Close() {
	m.Limiter.Stop()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"user_id", c.GetString(middleware.ContextUserID),
		)
	}
}
