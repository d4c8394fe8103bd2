package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jnieblas/openai-response-api-demo/internal/config"
	"github.com/jnieblas/openai-response-api-demo/internal/logger"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"github.com/jnieblas/openai-response-api-demo/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and JSON API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(c *cobra.Command) {
	c.Flags().String("host", "0.0.0.0", "server host")
	c.Flags().Int("port", 8501, "server port")
	c.Flags().String("mode", "release", "server mode (debug/release/test)")
}

// bindServeFlags binds the flags of the command actually running, so the
// root and serve variants do not overwrite each other.
func bindServeFlags(c *cobra.Command) {
	viper.BindPFlag("server.host", c.Flags().Lookup("host"))
	viper.BindPFlag("server.port", c.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", c.Flags().Lookup("mode"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bindServeFlags(cmd)

	cfg, err := config.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if err := initDirectories(cfg); err != nil {
		log.Error("Failed to initialize directories", zap.Error(err))
		return err
	}

	log.Info("Starting responses demo",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("default_model", cfg.Defaults.Model),
	)

	if key := responses.ResolveAPIKey(cfg.OpenAI.APIKey); key != "" {
		log.Info("OpenAI API key is set", zap.String("key_prefix", logger.MaskSecret(key)))
	} else {
		log.Warn("No OpenAI API key configured, requests must carry api_key",
			zap.String("env", responses.APIKeyEnv))
	}
	if cfg.Security.AccessKey == "" {
		log.Info("No access key set, the API is open")
	}

	srv, err := server.New(cfg, log, Version)
	if err != nil {
		log.Error("Failed to create server", zap.Error(err))
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("Server failed", zap.Error(err))
		return err
	case <-stop:
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server stopped gracefully")
	return nil
}

func initDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.Storage.DataDir,
		cfg.Storage.HistoryDir,
		cfg.Storage.UsageDir,
		cfg.Storage.LogsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
