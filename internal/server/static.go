package server

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jnieblas/openai-response-api-demo/internal/embed"
	"go.uber.org/zap"
)

// setupStaticFiles serves the web UI under /ui.
// Embedded files win over an external ./public directory.
func (s *Server) setupStaticFiles() {
	if embed.HasEmbeddedFiles() {
		publicFS, err := embed.GetPublicFS()
		if err == nil {
			s.logger.Debug("Using embedded public files")
			s.router.StaticFS("/ui", http.FS(publicFS))
			return
		}
		s.logger.Warn("Failed to load embedded files", zap.Error(err))
	}

	if _, err := os.Stat("./public"); err == nil {
		s.logger.Info("Using external public directory")
		s.router.Static("/ui", "./public")
		return
	}

	s.logger.Warn("No public files found (embedded or external)")
	s.router.GET("/ui/*path", func(c *gin.Context) {
		c.Data(404, "text/html; charset=utf-8", []byte(`<html>
<head><title>UI Not Found</title></head>
<body style="font-family: sans-serif; padding: 50px; text-align: center;">
	<h1>UI Not Found</h1>
	<p>The web UI is not embedded in this build.</p>
	<p>The JSON API is available at <code>/api/*</code>.</p>
</body>
</html>`))
	})
}
