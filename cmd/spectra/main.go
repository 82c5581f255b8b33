package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spectra/internal/backend"
	"spectra/internal/chat"
	"spectra/internal/config"
	"spectra/internal/httpapi"
	"spectra/internal/observability"
	"spectra/internal/persona"
	"spectra/internal/sessionstore"
	"spectra/internal/speech"
	"spectra/internal/transcript"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(os.Getenv("LOG_LEVEL")))
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	sessions, err := sessionstore.NewStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionRetention)
	if err != nil {
		log.Fatal().Err(err).Msg("session store init failed")
	}
	defer sessions.Close()

	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("transcript store init failed")
	}
	defer transcripts.Close()

	be, err := backend.New(backend.Config{
		Provider: cfg.AIProvider,
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Host:     cfg.LocalLLMHost,
		Model:    cfg.ModelName,
		Timeout:  cfg.BackendTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("model backend init failed")
	}
	log.Info().Str("provider", be.Name()).Str("model", cfg.ModelName).Msg("model backend ready")

	if err := os.MkdirAll(cfg.AssetDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.AssetDir).Msg("creating audio asset directory")
	}
	assets := speech.NewManager(speech.Config{
		ToolPath: cfg.VsayPath,
		AssetDir: cfg.AssetDir,
		Timeout:  cfg.SynthesisTimeout,
		MaxAge:   cfg.AssetMaxAge,
	}, sessions, log)
	assets.SetSweepHook(func(removed int) {
		metrics.AssetsSwept.Add(float64(removed))
	})

	personas := persona.NewStore(cfg.PersonaDir, persona.Record{
		AvatarName:        cfg.AvatarName,
		AvatarFullName:    cfg.AvatarFullName,
		SystemInstruction: cfg.SystemInstruction,
		AvatarImageIdle:   cfg.AvatarImageIdle,
		AvatarImageTalk:   cfg.AvatarImageTalk,
		VsayOptions:       persona.DefaultVsayOptions(),
	}, log)
	if err := personas.EnsureDefault(cfg.AvatarName); err != nil {
		log.Fatal().Err(err).Msg("writing default persona")
	}

	orchestrator := chat.NewOrchestrator(personas, sessions, be, assets, transcripts, metrics, log, cfg.AvatarName)

	api := httpapi.New(cfg, orchestrator, personas, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Stale synthesis output from a previous run is swept once at startup,
	// then periodically.
	if n, err := assets.SweepExpired(cfg.AssetMaxAge); err != nil {
		log.Warn().Err(err).Msg("startup asset sweep failed")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("swept stale audio assets")
	}
	assets.StartJanitor(runCtx, cfg.AssetSweepEvery)

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
