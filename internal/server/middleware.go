package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jnieblas/openai-response-api-demo/internal/logger"
	"github.com/jnieblas/openai-response-api-demo/internal/models"
	"go.uber.org/zap"
)

// loggerMiddleware logs HTTP requests
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		// static assets and probes are noisy
		if strings.HasPrefix(path, "/ui") || path == "/health" || path == "/ping" {
			s.logger.Debug("HTTP Request", fields...)
			return
		}
		s.logger.Info("HTTP Request", fields...)
	}
}

// corsMiddleware handles CORS
func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Access-Key"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	origins := s.cfg.Security.AllowedOrigins
	if len(origins) == 0 || containsString(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// bodyLimitMiddleware caps request bodies
func (s *Server) bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// accessKeyMiddleware guards /api when an access key is configured. The key
// is accepted as a Bearer token or in X-Access-Key.
func (s *Server) accessKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := s.cfg.Security.AccessKey
		if expected == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-Access-Key")
		if provided == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if provided == "" {
			c.AbortWithStatusJSON(401, models.ErrorResponse{Error: models.ErrorDetail{
				Message: "Missing access key",
				Type:    "authentication_error",
				Code:    "missing_access_key",
			}})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			s.logger.Warn("Invalid access key attempt",
				zap.String("key_prefix", logger.MaskSecret(provided)),
				zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(401, models.ErrorResponse{Error: models.ErrorDetail{
				Message: "Invalid access key",
				Type:    "authentication_error",
				Code:    "invalid_access_key",
			}})
			return
		}

		c.Next()
	}
}

// rateLimitMiddleware throttles requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if s.limiter.Allow(ip) {
			c.Next()
			return
		}

		wait := s.limiter.RetryAfter()
		s.logger.Warn("Client rate limited",
			zap.String("client_ip", ip),
			zap.Int("retry_after", wait))
		c.Header("Retry-After", fmt.Sprint(wait))
		c.AbortWithStatusJSON(429, models.ErrorResponse{Error: models.ErrorDetail{
			Message:    "Too many requests, slow down.",
			Type:       "rate_limit_error",
			Code:       "client_rate_limited",
			RetryAfter: wait,
		}})
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
