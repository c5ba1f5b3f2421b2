package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"giftai/internal/app"
	"giftai/internal/config"
	"giftai/internal/server"
	"giftai/internal/util"
	"giftai/pkg/ai"
	"giftai/pkg/queue"
	"giftai/pkg/render"
	"giftai/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	genTimeout, err := config.ParseGenerationTimeout(cfg.GenTimeout)
	if err != nil {
		log.Fatalf("failed to parse generation timeout: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	generator := ai.NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if !generator.Configured() {
		slog.Warn("text generation not configured, books will use fallback stories")
	}

	renderer, err := render.NewRenderer(cfg.PDFDir, cfg.PDFFontPath)
	if err != nil {
		log.Fatalf("failed to init renderer: %v", err)
	}

	renderQueue, err := queue.NewRenderQueue(queue.RenderQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.RenderStream,
		MaxRetries: cfg.RenderMaxRetries,
	})
	if err != nil {
		log.Fatalf("failed to init render queue: %v", err)
	}

	var artifacts storage.ArtifactStore
	if cfg.MinioEndpoint != "" {
		artifacts, err = storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init artifact store: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:       cfg.DatabaseURL,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		SessionBackend:    cfg.SessionBackend,
		JWTSecret:         cfg.JWTSecret,
		SessionTTL:        sessionTTL,
		GenerationTimeout: genTimeout,
		Generator:         generator,
		Renderer:          renderer,
		Scheduler:         renderQueue,
		Artifacts:         artifacts,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		GenerateRateLimitPerMinute: cfg.GenerateRatePerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderQueue.Start(ctx, cfg.RenderConcurrency, appCore.HandleRenderJob)

	addr := ":" + cfg.Port
	srv := newHTTPServer(addr, httpServer.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	slog.Info("server stopped")
}

// newHTTPServer builds the listener. Generate requests hold the
// connection until the story text arrives, up to the configured
// generation timeout, so no write deadline is set.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}
