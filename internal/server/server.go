package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jnieblas/openai-response-api-demo/internal/config"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"github.com/jnieblas/openai-response-api-demo/internal/storage"
	"go.uber.org/zap"
)

// Server represents the web server
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	router     *gin.Engine
	history    *storage.HistoryStore
	usageStore *storage.UsageStore
	limiter    *ipLimiter
	startTime  time.Time
	version    string
}

// New creates a new server instance
func New(cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)
	useJSONFieldNames()

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		router:     gin.New(),
		history:    storage.NewHistoryStore(cfg.Storage.HistoryDir, cfg.Storage.HistoryLimit),
		usageStore: storage.NewUsageStore(cfg.Storage.UsageDir),
		startTime:  time.Now(),
		version:    version,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newIPLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
	if s.cfg.Server.MaxBodyBytes > 0 {
		s.router.Use(s.bodyLimitMiddleware(s.cfg.Server.MaxBodyBytes))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(302, "/ui/")
	})

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ping", s.ping)

	api := s.router.Group("/api")
	api.Use(s.accessKeyMiddleware())
	{
		api.GET("/options", s.getOptions)
		api.GET("/templates", s.getTemplates)
		api.GET("/status", s.getStatus)

		gen := api.Group("/")
		if s.limiter != nil {
			gen.Use(s.rateLimitMiddleware())
		}
		gen.POST("/generate", s.generate(""))
		gen.POST("/email", s.generate("email"))
		gen.POST("/letter", s.generate("letter"))
		gen.POST("/message", s.generate("message"))
		gen.POST("/tokens/estimate", s.estimateTokens)

		api.GET("/sessions", s.listSessions)
		api.GET("/sessions/:id/history", s.getHistory)
		api.DELETE("/sessions/:id/history", s.clearHistory)

		api.GET("/usage", s.getUsageHistory)

		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.clearLogs)
	}

	s.setupStaticFiles()
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

// clientOptions builds the responses client options for one request
func (s *Server) clientOptions(apiKey string) []responses.Option {
	opts := []responses.Option{
		responses.WithAPIKey(apiKey),
		responses.WithBaseURL(s.cfg.OpenAI.BaseURL),
		responses.WithTimeout(s.cfg.OpenAI.Timeout),
		responses.WithMaxRetries(s.cfg.OpenAI.MaxRetries),
		responses.WithLogger(s.logger.Named("responses")),
		responses.WithDefaultModel(s.cfg.Defaults.Model),
		responses.WithFormatInstructions(s.cfg.OpenAI.FormatInstructions),
	}
	if s.cfg.OpenAI.UserAgent != "" {
		opts = append(opts, responses.WithUserAgent(s.cfg.OpenAI.UserAgent))
	}
	return opts
}
