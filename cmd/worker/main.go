package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-digest-bot/internal/enricher"
	"github.com/lueurxax/telegram-digest-bot/internal/fetcher"
	"github.com/lueurxax/telegram-digest-bot/internal/pipeline"
	"github.com/lueurxax/telegram-digest-bot/internal/platform/config"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
	"github.com/lueurxax/telegram-digest-bot/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "process a single job and exit")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	fetch := fetcher.New(fetcher.Config{
		MaxBytes:     cfg.FetchMaxBytes,
		Timeout:      cfg.FetchTimeout(),
		MaxRedirects: cfg.FetchMaxRedirects,
		UserAgent:    cfg.UserAgent,
		HostThrottle: cfg.HostThrottle(),
	})

	var enrich *enricher.Enricher
	if cfg.IntelEnrich {
		enrich = enricher.New(enricher.Config{
			Model:              cfg.OpenAIModel,
			APIKey:             cfg.OpenAIAPIKey,
			BaseURL:            cfg.OpenAIAPIBase,
			MaxSummaryChars:    cfg.SummaryMaxChars,
			MaxSignals:         cfg.SignalsMax,
			MaxSignalChars:     cfg.SignalMaxChars,
			MaxSnippetChars:    cfg.SnippetMaxChars,
			SectionPromptChars: cfg.SectionPromptChars,
		})
	} else {
		logger.Info().Msg("enrichment disabled (INTEL_ENRICH=false)")
	}

	p := pipeline.New(database, fetch, enrich, pipeline.Config{ExtractMaxChars: cfg.ExtractMaxChars}, &logger)

	if *once {
		ok, err := worker.RunOnce(ctx, p)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker run failed")
		}

		logger.Info().Bool("processed", ok).Msg("worker run-once complete")

		return
	}

	logger.Info().Msg("starting intel worker")

	if err := worker.Run(ctx, p, worker.Config{SleepInterval: cfg.WorkerSleep(), Logger: &logger}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker error")
	}

	logger.Info().Msg("worker stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
