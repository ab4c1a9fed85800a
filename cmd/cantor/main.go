// Package main is the cantor bot daemon: Telegram transport, ops server,
// session sweeper, and catalog watcher under one process.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cantorbot/cantor/internal/bot"
	"github.com/cantorbot/cantor/internal/config"
	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
	"github.com/cantorbot/cantor/internal/feedback"
	"github.com/cantorbot/cantor/internal/parser"
	"github.com/cantorbot/cantor/internal/search"
	"github.com/cantorbot/cantor/internal/server"
	"github.com/cantorbot/cantor/internal/session"
	"github.com/cantorbot/cantor/internal/transport/telegram"
	"github.com/cantorbot/cantor/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Settings file (default: ~/.cantor/settings.yaml)")
	catalogPath := flag.String("catalog", "", "Catalog JSON file to import and watch")
	mockParser := flag.Bool("mock-parser", false, "Use the rule-based parser instead of Ollama")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *mockParser {
		cfg.UseMockParser = true
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug || cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}

	store, err := db.NewStore(db.Config{Path: cfg.DBPath, MaxConns: cfg.MaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	songs := db.NewSongStore(store)
	usage := db.NewUsageStore(store)
	feedbackStore := db.NewFeedbackStore(store)
	messages := db.NewMessageLogStore(store)

	if cfg.CatalogPath != "" {
		stats, err := db.ImportCatalog(ctx, store, songs, cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Catalog import failed")
		}
		log.Info().Int("created", stats.Created).Int("updated", stats.Updated).Msg("Catalog imported")
	}

	scorer := familiarity.NewScorer(usage)
	resolver := search.NewResolver(songs, cfg.ThemeLimit)
	ranker := search.NewRanker(scorer, cfg.PageSize)
	sessions := session.NewManager(cfg.SessionTTL)
	recorder := feedback.NewRecorder(songs, feedbackStore, scorer)

	fallback := parser.NewFallbackParser(cfg.ThemeSynonyms)
	var queryParser parser.Parser = fallback
	if cfg.UseMockParser {
		log.Info().Msg("Using rule-based parser (no LLM calls)")
	} else {
		log.Info().Str("url", cfg.OllamaURL).Str("model", cfg.OllamaModel).Msg("Using Ollama parser")
		queryParser = parser.NewLLMParser(cfg.OllamaURL, cfg.OllamaModel, cfg.ParserTimeout, fallback)
	}

	handler := bot.NewHandler(queryParser, resolver, ranker, sessions, recorder, scorer, messages)
	poller := telegram.NewClient(cfg.TelegramToken, handler)
	ops := server.New(store, songs, messages, sessions, Version)

	if count, err := songs.CountActive(ctx); err == nil {
		log.Info().Int64("songs", count).Str("version", Version).Msg("Cantor starting")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(ctx)
	})
	g.Go(func() error {
		return ops.Run(ctx, cfg.OpsAddr)
	})
	g.Go(func() error {
		sessions.Run(ctx)
		return nil
	})

	if cfg.CatalogPath != "" {
		w, err := watcher.New(cfg.CatalogPath, func() {
			stats, err := db.ImportCatalog(ctx, store, songs, cfg.CatalogPath)
			if err != nil {
				log.Error().Err(err).Msg("Catalog re-import failed")
				return
			}
			log.Info().Int("created", stats.Created).Int("updated", stats.Updated).Msg("Catalog re-imported")
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create catalog watcher")
		}
		if err := w.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start catalog watcher")
		}
		defer w.Stop()
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Cantor stopped with error")
	}
	log.Info().Msg("Cantor stopped")
}
