// Package main is cantorctl, the admin CLI for the cantor catalog and
// familiarity ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cantorbot/cantor/internal/config"
	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/familiarity"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "cantorctl",
	Short: "Administer the cantor song catalog and familiarity ledger.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <catalog.json>",
	Short: "Import or refresh songs from a catalog JSON file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, store, songs, _, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		stats, err := db.ImportCatalog(ctx, store, songs, args[0])
		if err != nil {
			return fmt.Errorf("import catalog: %w", err)
		}
		fmt.Printf("Imported catalog: %d created, %d updated\n", stats.Created, stats.Updated)
		return nil
	},
}

var seedTarget float64

var seedBaselineCmd = &cobra.Command{
	Use:   "seed-baseline <song title>",
	Short: "Seed a familiarity baseline for a song with no usage history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, songs, scorer, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		song, err := songs.GetByTitle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("look up song: %w", err)
		}
		if song == nil {
			return fmt.Errorf("song %q not found", args[0])
		}

		if err := scorer.SeedBaseline(ctx, song.ID, seedTarget); err != nil {
			return fmt.Errorf("seed baseline: %w", err)
		}
		fmt.Printf("Seeded '%s' to familiarity %.1f (now scores %.1f)\n",
			song.Title, seedTarget, scorer.Score(ctx, song.ID))
		return nil
	},
}

var usageDate string

var logUsageCmd = &cobra.Command{
	Use:   "log-usage <song title>",
	Short: "Record that a song was used in a service.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, songs, scorer, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		song, err := songs.GetByTitle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("look up song: %w", err)
		}
		if song == nil {
			return fmt.Errorf("song %q not found", args[0])
		}

		usedAt := time.Now()
		if usageDate != "" {
			usedAt, err = time.Parse("2006-01-02", usageDate)
			if err != nil {
				return fmt.Errorf("parse --date: %w", err)
			}
		}

		if err := scorer.RecordUse(ctx, song.ID, usedAt, "manual"); err != nil {
			return fmt.Errorf("record usage: %w", err)
		}
		fmt.Printf("Logged usage of '%s' on %s (familiarity %.1f)\n",
			song.Title, usedAt.Format("2006-01-02"), scorer.Score(ctx, song.ID))
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <song title>",
	Short: "Show the current familiarity score for a song.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, songs, scorer, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		song, err := songs.GetByTitle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("look up song: %w", err)
		}
		if song == nil {
			return fmt.Errorf("song %q not found", args[0])
		}
		fmt.Printf("%s — %s: familiarity %.1f\n", song.Title, song.Artist, scorer.Score(ctx, song.ID))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active songs with key, tempo, and familiarity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, songs, scorer, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		active, err := songs.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list songs: %w", err)
		}
		for _, song := range active {
			bpm := "?"
			if song.HasBPM() {
				bpm = fmt.Sprintf("%d", song.BPM)
			}
			fmt.Printf("%-35s %-25s key %-3s %4s bpm  familiarity %.1f\n",
				song.Title, song.Artist, song.Key, bpm, scorer.Score(ctx, song.ID))
		}
		fmt.Printf("%d active songs\n", len(active))
		return nil
	},
}

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog size and recent usage statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, store, songs, _, closeStore, err := openStores()
		if err != nil {
			return err
		}
		defer closeStore()

		messages := db.NewMessageLogStore(store)

		count, err := songs.CountActive(ctx)
		if err != nil {
			return fmt.Errorf("count songs: %w", err)
		}
		typeStats, err := messages.TypeStats(ctx, statsDays)
		if err != nil {
			return fmt.Errorf("message stats: %w", err)
		}
		activeUsers, err := messages.ActiveUsers(ctx, statsDays)
		if err != nil {
			return fmt.Errorf("active users: %w", err)
		}

		fmt.Printf("Active songs:      %d\n", count)
		fmt.Printf("Active users (%dd): %d\n", statsDays, activeUsers)
		fmt.Printf("Messages (%dd):\n", statsDays)
		for messageType, n := range typeStats {
			fmt.Printf("  %-10s %d\n", messageType, n)
		}
		return nil
	},
}

// openStores loads config and opens the database with the scorer over it.
func openStores() (context.Context, *db.Store, *db.SongStore, *familiarity.Scorer, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDataDir(); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("ensure data dir: %w", err)
	}

	store, err := db.NewStore(db.Config{Path: cfg.DBPath, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	songs := db.NewSongStore(store)
	scorer := familiarity.NewScorer(db.NewUsageStore(store))
	closeStore := func() { _ = store.Close() }
	return context.Background(), store, songs, scorer, closeStore, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: ~/.cantor/settings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	seedBaselineCmd.Flags().Float64Var(&seedTarget, "target", 5.0, "Target familiarity score in [0,10]")
	logUsageCmd.Flags().StringVar(&usageDate, "date", "", "Usage date as YYYY-MM-DD (default: today)")
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Lookback window in days")

	rootCmd.AddCommand(importCmd, listCmd, seedBaselineCmd, logUsageCmd, scoreCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
