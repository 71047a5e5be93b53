package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mira/internal/config"
	"mira/internal/handler"
	"mira/internal/repository"
	"mira/internal/service"
	"mira/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Mira property search",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()
	logger.Info("listing store ready", zap.String("driver", cfg.Store.Driver))

	aiClient, err := service.NewAIClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	if aiClient.IsEnabled() {
		logger.Info("AI client initialized",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
			zap.Float64("chat_temperature", cfg.OpenAI.ChatTemperature),
			zap.Int("chat_max_tokens", cfg.OpenAI.ChatMaxTokens),
		)
	} else {
		logger.Warn("AI client disabled: set OPENAI_API_KEY or LLM_PROVIDER=langchain for a local server; queries will fail until then")
	}

	embedder, closeCache := service.NewQueryEmbedder(ctx, aiClient, cfg.Cache, logger)
	defer closeCache()

	searchService := service.NewSearchService(
		store,
		service.NewIntentParser(aiClient, cfg.Retrieval.FallbackDisplayLimit, logger),
		embedder,
		service.NewResponseComposer(aiClient, logger),
		cfg.Retrieval,
		logger,
	)
	defer searchService.Close()

	gin.SetMode(cfg.Server.GinMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "mira",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	handler.RegisterRoutes(router, searchService)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
