package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mira/internal/config"
	"mira/internal/ingest"
	"mira/internal/model"
	"mira/internal/repository"
	"mira/internal/service"
	"mira/internal/utils"
)

var (
	dataDir  string
	workers  int
	dryRun   bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "seeder",
	Short:         "Load listing source files into the Mira listing store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Merge, embed and store the listing pool",
	Long: `Reads property_basics.json, property_characteristics.json and property_images.json
from the data directory, merges them by id, infers a property type and a description
for each listing, embeds the descriptions and replaces the stored pool in one transaction.`,
	RunE: runSeed,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	seedCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./data", "directory holding the source JSON files")
	seedCmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent embedding requests")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "merge and report without embedding or writing")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	// the progress bar owns stderr, keep logs readable
	logger, err := utils.NewLogger(cfg.Logging.Level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, err := ingest.LoadSources(dataDir)
	if err != nil {
		return err
	}
	listings, err := ingest.Merge(src, logger)
	if err != nil {
		return err
	}
	logger.Info("merged listing sources", zap.String("dir", dataDir), zap.Int("listings", len(listings)))

	if dryRun {
		ingest.Prepare(listings)
		printSummary(cmd, listings)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	aiClient, err := service.NewAIClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	bar := newProgressBar(len(listings))
	pipeline, err := ingest.NewPipeline(aiClient, store,
		ingest.WithWorkers(workers),
		ingest.WithLogger(logger),
		ingest.WithProgress(func(done, _ int) { _ = bar.Set(done) }),
	)
	if err != nil {
		return err
	}

	if err := pipeline.Run(ctx, listings); err != nil {
		_ = bar.Exit()
		return fmt.Errorf("seeding failed: %w", err)
	}
	_ = bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d listings into %s\n", len(listings), cfg.Store.Driver)
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("embedding listings"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("listings"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printSummary(cmd *cobra.Command, listings []model.Listing) {
	counts := make(map[model.PropertyType]int)
	for _, l := range listings {
		counts[l.PropertyType]++
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d listings\n", len(listings))
	for _, pt := range model.PropertyTypes {
		if n := counts[pt]; n > 0 {
			fmt.Fprintf(out, "  %-12s %d\n", pt, n)
		}
	}
}
