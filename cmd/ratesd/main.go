// ratesd — ECB foreign exchange reference rate service
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openfx/ratesd/api"
	"github.com/openfx/ratesd/internal/config"
	"github.com/openfx/ratesd/internal/ecb"
	"github.com/openfx/ratesd/internal/rates"
	"github.com/openfx/ratesd/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ratesd",
	Short: "ratesd — ECB foreign exchange reference rate service",
	Long: `ratesd serves the European Central Bank's daily reference rates.

It keeps a local snapshot of the full historical feed, refreshes it once
a day after the ECB publishes around 16:00 CET, and exposes conversion
and timeframe queries over a JSON API with WebSocket refresh events.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(currenciesCmd)
	rootCmd.AddCommand(statusCmd)
}

// newLoader wires the feed client and snapshot from the loaded config.
func newLoader() *ecb.Loader {
	return ecb.NewLoader(
		ecb.NewClient(cfg.Feed.URL, cfg.Feed.Timeout),
		ecb.NewSnapshot(cfg.Cache.Path),
	)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ratesd %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

On startup the local snapshot is loaded if it is fresh; otherwise the
feed is fetched and the snapshot rewritten. A scheduler then refetches
the feed once a day at the configured CET minute.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loader := newLoader()

		ds, err := loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("load rates: %w", err)
		}
		if latest, ok := ds.Latest(); ok {
			log.Printf("dataset ready: %d days, %d currencies, latest %s",
				len(ds.Days), len(ds.Currencies), utils.FormatDate(latest.Date))
		} else {
			log.Printf("dataset ready but empty")
		}

		handle := rates.NewSharedDataset(ds)
		refresher := ecb.NewRefresher(loader, handle, cfg.Refresh.MinuteOfDay)
		srv := api.NewServer(cfg, handle, loader, version)
		refresher.OnSwap = srv.NotifyRefresh

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return refresher.Run(ctx)
		})
		g.Go(func() error {
			fmt.Printf("🌐 ratesd API listening on %s\n", cfg.Addr())
			return srv.ListenAndServe(ctx, cfg.Addr())
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Println("ratesd stopped")
		return nil
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the feed now and rewrite the local snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ds, err := newLoader().Fetch(ctx)
		if err != nil {
			return err
		}

		if latest, ok := ds.Latest(); ok {
			fmt.Printf("Fetched %d days, %d currencies (latest %s)\n",
				len(ds.Days), len(ds.Currencies), utils.FormatDate(latest.Date))
		} else {
			fmt.Println("Fetched an empty feed")
		}
		fmt.Printf("Snapshot written to %s\n", cfg.Cache.Path)
		return nil
	},
}

// --- Currencies Command ---

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List every currency in the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ds, err := newLoader().Load(ctx)
		if err != nil {
			return err
		}

		for _, code := range ds.Currencies {
			fmt.Println(code)
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  ratesd — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Printf("  Publication: %s\n", utils.PublicationStatus())
		fmt.Printf("  Time (CET):  %s\n", utils.FormatDateTimeCET(utils.NowCET()))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Feed URL:    %s\n", cfg.Feed.URL)
		fmt.Printf("    Cache Path:  %s\n", cfg.Cache.Path)
		fmt.Printf("    Refresh at:  %02d:%02d CET\n", cfg.Refresh.MinuteOfDay/60, cfg.Refresh.MinuteOfDay%60)
		fmt.Printf("    API Server:  %s\n", cfg.Addr())
		fmt.Println()

		// Snapshot summary — read the local cache only, no network.
		fmt.Println("  Snapshot:")
		loader := newLoader()
		data, err := loader.Snapshot().Read()
		if err != nil {
			fmt.Printf("    ❌ not readable: %v\n", err)
			fmt.Println("═══════════════════════════════════════")
			return nil
		}
		ds, err := ecb.Parse(data)
		if err != nil {
			fmt.Printf("    ❌ not parsable: %v\n", err)
			fmt.Println("═══════════════════════════════════════")
			return nil
		}

		freshness := "✅ fresh"
		if loader.Stale(ds) {
			freshness = "⚠️  stale (refetch pending)"
		}
		fmt.Printf("    Days:        %d\n", len(ds.Days))
		fmt.Printf("    Currencies:  %d\n", len(ds.Currencies))
		if latest, ok := ds.Latest(); ok {
			fmt.Printf("    Latest:      %s\n", utils.FormatDate(latest.Date))
		}
		fmt.Printf("    Freshness:   %s\n", freshness)
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
