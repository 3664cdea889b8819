package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nanobanana-studio/modules/api"
	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/common/config"
	"nanobanana-studio/modules/common/logger"
	"nanobanana-studio/modules/common/middleware"
	"nanobanana-studio/modules/common/redis"
	"nanobanana-studio/modules/generation"
	"nanobanana-studio/modules/session"
)

const (
	cleanupInterval = 5 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log := logger.New(cfg.AppEnv)
	cfg.LogSummary(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nano Banana 게이트웨이
	gen, err := generation.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize Nano Banana")
	}

	// Cloudinary 게이트웨이 (자격증명 없으면 base64 모드)
	storage, err := assets.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize Cloudinary")
	}

	// 세션 스토어
	hub := session.NewHub(log)
	sessions := session.NewManager(sessionStore(ctx, cfg, log), hub, log)
	sessions.StartCleanupRoutine(ctx, cleanupInterval)

	studioURL, onboardingURL := cfg.ServiceURLs()
	handler := api.NewHandler(gen, storage, sessions, hub, api.Options{
		BaseURL:       cfg.BaseURL(),
		TemplatesDir:  cfg.TemplatesDir,
		StudioURL:     studioURL,
		OnboardingURL: onboardingURL,
		DefaultClient: cfg.DefaultClientFolder,
		Sweeper:       sessions,
	}, &log)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(log), middleware.Recover(log))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		// CORS wraps the router so preflight requests never hit method matching
		Handler:           middleware.CORS(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("model", gen.Model()).Msg("🚀 Nano Banana Studio starting")
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("🛑 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("👋 Server stopped")
}

// sessionStore picks Redis when configured, otherwise process memory.
func sessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) session.Store {
	if cfg.RedisEnabled() {
		rdb, err := redis.Connect(ctx, cfg, log)
		if err == nil {
			return session.NewRedisStore(rdb, cfg.SessionTTL)
		}
		log.Warn().Err(err).Msg("⚠️  Redis unavailable, falling back to in-memory sessions")
	}
	return session.NewMemoryStore(cfg.SessionTTL, log)
}
