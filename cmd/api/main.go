package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/handler"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/personality"
	"github.com/zhouzirui/z-companion/backend/internal/service/relay"
	"github.com/zhouzirui/z-companion/backend/internal/service/user"
	"github.com/zhouzirui/z-companion/backend/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Warn("failed to load .env file, continuing with system environment", "error", envErr)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	personaStore := persona.NewMemoryStore(persona.Seed())
	userService := user.NewService()

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		return fmt.Errorf("init session manager: %w", err)
	}
	if cfg.Session.Secret == "" {
		log.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	generator := newGenerator(ctx, cfg.AI, log)
	limiter := ai.NewLimiter(cfg.RateLimit)
	aiService := ai.NewService(generator, limiter, cfg.AI, log)
	detector := personality.NewService(aiService.Generator(), limiter, log)
	orchestrator := relay.NewOrchestrator(userService, detector, aiService, log)

	router := handler.NewRouter(handler.Dependencies{
		Personas:       personaStore,
		Users:          userService,
		Sessions:       sessions,
		Processor:      orchestrator,
		AIEnabled:      cfg.AI.Enabled(),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Log:            log,
	})

	return startServer(ctx, cfg.Server, router, log)
}

// newGenerator 构建大模型调用链，凭证缺失或初始化失败时返回不可用实现。
func newGenerator(ctx context.Context, cfg config.AIConfig, log *logger.Logger) ai.Generator {
	if !cfg.Enabled() {
		log.Warn("Ark credentials not configured, replies will use fallbacks")
		return nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		log.Warn("failed to initialize chat model, replies will use fallbacks", "error", err)
		return nil
	}

	generator, err := ai.NewChainGenerator(ctx, chatModel)
	if err != nil {
		log.Warn("failed to compile generation chain, replies will use fallbacks", "error", err)
		return nil
	}

	log.Info("AI service initialized", "model", cfg.Model)
	return generator
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("companion backend listening", "addr", serverCfg.Addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
