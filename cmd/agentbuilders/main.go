package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"agentbuilders.dev/internal/catalog"
	"agentbuilders.dev/internal/config"
	"agentbuilders.dev/internal/database"
	"agentbuilders.dev/internal/encoding"
	"agentbuilders.dev/internal/httpserver"
	"agentbuilders.dev/internal/refresh"
	"agentbuilders.dev/internal/scheduler"
	"agentbuilders.dev/internal/seed"
	"agentbuilders.dev/internal/sources/github"
	"agentbuilders.dev/internal/sources/npm"
	"agentbuilders.dev/internal/sources/pypi"
	"agentbuilders.dev/internal/sources/similarweb"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	rootCmd = &cobra.Command{
		Use:           "agentbuilders",
		Short:         "Agent-framework directory server and utilities",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Run the API server with the background refresh scheduler",
		RunE:  runServer,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	}
	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Revert all applied migrations",
		RunE:  runMigrateDown,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load the starter catalog into an empty database",
		RunE:  runSeed,
	}
	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import frameworks from an awesome-list markdown file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	refreshCmd = &cobra.Command{
		Use:       "refresh {github|pypi|npm|trending|all}",
		Short:     "Run one metric refresh pass immediately",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"github", "pypi", "npm", "trending", "all"},
		RunE:      runRefresh,
	}
	rankCmd = &cobra.Command{
		Use:   "rank <domain>",
		Short: "Look up the global web rank of a domain",
		Args:  cobra.ExactArgs(1),
		RunE:  runRank,
	}

	// Flags
	dsn          string
	seedForce    bool
	startSection string
	endSection   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database source name (postgres://...). Falls back to the DSN environment variable")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Seed even when the database already has frameworks")
	importCmd.Flags().StringVar(&startSection, "start-section", "", "Heading at which to start importing categories")
	importCmd.Flags().StringVar(&endSection, "end-section", "", "Heading at which to stop importing categories")
	migrateCmd.AddCommand(upCmd, downCmd)
	rootCmd.AddCommand(serverCmd, migrateCmd, seedCmd, importCmd, refreshCmd, rankCmd)
}

// setup builds the config and logging shared by every command, applying the
// --dsn flag override before anything reads it.
func setup() *config.Config {
	cfg := config.New()
	if dsn != "" {
		cfg.Set("dsn", dsn)
	}
	config.SetupLog(cfg)
	return cfg
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := setup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := config.SetupTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdownTelemetry()

	db, err := database.NewForConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	svc := catalog.NewService(db)
	orch := newOrchestrator(cfg, db)
	sched := scheduler.New(scheduler.RefreshJobs(orch, cfg)...)
	srv := httpserver.New(cfg, db, svc)

	cfg.Watch(ctx)
	cfg.OnLogLevelChange(func(level slog.Level) {
		slog.Info("Log level set", "level", level)
	})

	sched.Start(ctx)
	slog.InfoContext(ctx, "Starting server", "addr", cfg.GetAddr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	mg, err := database.NewMigratorForConfig(setup())
	if err != nil {
		return err
	}
	return mg.Up()
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	mg, err := database.NewMigratorForConfig(setup())
	if err != nil {
		return err
	}
	return mg.Down()
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := setup()
	db, err := database.NewForConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := seed.NewSeeder(db).Seed(cmd.Context(), seedForce)
	if err != nil {
		return err
	}
	slog.Info("Seed finished",
		"categories", summary.Categories,
		"frameworks", summary.Frameworks,
		"resources", summary.Resources,
		"skipped", summary.Skipped)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := setup()

	in, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var opts []encoding.Option
	if startSection != "" {
		opts = append(opts, encoding.WithStartSection(startSection))
	}
	if endSection != "" {
		opts = append(opts, encoding.WithEndSection(endSection))
	}
	cat, err := encoding.UnmarshalCatalog(in, opts...)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	db, err := database.NewForConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := seed.NewSeeder(db).ImportCatalog(cmd.Context(), cat)
	if err != nil {
		return err
	}
	slog.Info("Import finished",
		"categories", summary.Categories,
		"frameworks", summary.Frameworks,
		"skipped", summary.Skipped)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg := setup()
	db, err := database.NewForConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	orch := newOrchestrator(cfg, db)
	ctx := cmd.Context()

	if args[0] == "all" {
		_, err := orch.RefreshAll(ctx)
		return err
	}

	passes := map[string]func(context.Context) (*refresh.Report, error){
		"github":   orch.RefreshRepositoryMetrics,
		"pypi":     orch.RefreshPyPIDownloads,
		"npm":      orch.RefreshNpmDownloads,
		"trending": orch.RecomputeTrendingScores,
	}
	report, err := passes[args[0]](ctx)
	if err != nil {
		return err
	}
	report.Log(ctx)
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg := setup()
	client := similarweb.NewClient(cfg.GetSimilarwebAPIKey())
	res, err := client.FetchGlobalRank(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if res.Rank == nil {
		fmt.Printf("%s: no rank data\n", res.Domain)
		return nil
	}
	fmt.Printf("%s: global rank %d\n", res.Domain, *res.Rank)
	return nil
}

func newOrchestrator(cfg *config.Config, db *database.Database) *refresh.Orchestrator {
	var ghOpts []github.ClientOption
	if token := cfg.GetGitHubToken(); token != "" {
		ghOpts = append(ghOpts, github.WithToken(token))
	}
	return refresh.NewOrchestrator(
		db,
		github.NewClient(ghOpts...),
		pypi.NewClient(),
		npm.NewClient(),
	)
}
