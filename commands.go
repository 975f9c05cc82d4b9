package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"galnav/internal/api"
	"galnav/internal/config"
	"galnav/internal/db"
	"galnav/internal/engine"
	"galnav/internal/importer"
	"galnav/internal/logger"
)

var (
	configPath string
	cfg        *config.Config

	serveAddr string

	importBatch int

	routeRange    float64
	routeWeight   float64
	routeWorkers  int
	routeMaxNodes int

	searchLimit int

	reachRange float64
	reachJumps int
	reachLimit int

	rootCmd = &cobra.Command{
		Use:           "galnav",
		Short:         "Plan minimal-jump routes between star systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	importCmd = &cobra.Command{
		Use:   "import <file|url>...",
		Short: "Load system catalogs (EDSM dumps, journal or EDDN logs, optionally gzipped)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}

	routeCmd = &cobra.Command{
		Use:   "route <from> <to>",
		Short: "Find the route with the fewest jumps between two systems",
		Args:  cobra.ExactArgs(2),
		RunE:  runRoute,
	}

	searchCmd = &cobra.Command{
		Use:   "search <prefix>",
		Short: "List systems whose name starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	reachCmd = &cobra.Command{
		Use:   "reach <from>",
		Short: "List systems reachable within a number of jumps",
		Args:  cobra.ExactArgs(1),
		RunE:  runReach,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")

	importCmd.Flags().IntVar(&importBatch, "batch", importer.DefaultBatchSize, "systems per write transaction")

	routeCmd.Flags().Float64VarP(&routeRange, "range", "r", 0, "jump range in light-years (default from config)")
	routeCmd.Flags().Float64VarP(&routeWeight, "weight", "w", -1, "heuristic weight; 0 = uninformed, >1 = greedier (default from config)")
	routeCmd.Flags().IntVar(&routeWorkers, "workers", 0, "concurrent neighbor lookups (default from config)")
	routeCmd.Flags().IntVar(&routeMaxNodes, "max-expansions", -1, "expansion cap, 0 = unbounded (default from config)")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")

	reachCmd.Flags().Float64VarP(&reachRange, "range", "r", 0, "jump range in light-years (default from config)")
	reachCmd.Flags().IntVarP(&reachJumps, "jumps", "j", 1, "maximum number of jumps")
	reachCmd.Flags().IntVarP(&reachLimit, "limit", "n", 1000, "maximum systems listed")

	rootCmd.AddCommand(serveCmd, importCmd, routeCmd, searchCmd, reachCmd)
}

func openStore() (*db.DB, error) {
	return db.Open(cfg.Database.Driver, cfg.Database.DSN)
}

// openPlanner opens the store and, for the memory backend, loads the index
// up front since a one-shot command has nothing to overlap it with.
func openPlanner(ctx context.Context) (*engine.Planner, *db.DB, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	p := engine.NewPlanner(store, cfg.Oracle)
	if cfg.Oracle.Backend == "memory" {
		if err := p.LoadIndex(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return p, store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Banner(version)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	srv := api.NewServer(cfg, database)
	defer srv.Close()

	// Searches use the store until the index is ready.
	go func() {
		if err := srv.Planner().LoadIndex(ctx); err != nil {
			logger.Error("INDEX", fmt.Sprintf("Load failed: %v", err))
			return
		}
		logger.Success("INDEX", "Route planner ready")
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Server(cfg.Server.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	opts := importer.Options{BatchSize: importBatch}
	var total importer.Stats
	for _, src := range args {
		var stats importer.Stats
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			stats, err = importer.ImportURL(ctx, nil, src, database, opts)
		} else {
			stats, err = importer.ImportFile(ctx, src, database, opts)
		}
		total.Systems += stats.Systems
		total.Changed += stats.Changed
		total.Skipped += stats.Skipped
		total.Malformed += stats.Malformed
		if err != nil {
			return err
		}
	}

	n, err := database.CountSystems(ctx)
	if err != nil {
		return err
	}
	logger.Section("Import")
	logger.Stats("Systems read", total.Systems)
	logger.Stats("Rows changed", total.Changed)
	logger.Stats("Skipped", total.Skipped)
	logger.Stats("Malformed", total.Malformed)
	logger.Stats("Catalog size", n)
	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, store, err := openPlanner(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	params := store.LoadRouteConfig(ctx, cfg.Route)
	if routeRange != 0 {
		params.JumpRange = routeRange
	}
	if routeWeight >= 0 {
		params.HeuristicWeight = routeWeight
	}
	if routeWorkers > 0 {
		params.Workers = routeWorkers
	}
	if routeMaxNodes >= 0 {
		params.MaxExpansions = routeMaxNodes
	}

	plan, err := p.FindRoute(ctx, args[0], args[1], params)
	if err != nil {
		return err
	}

	logger.Section(fmt.Sprintf("%s → %s (%.2f ly range)", plan.From.Name, plan.To.Name, params.JumpRange))
	switch {
	case plan.Found:
		for i, hop := range plan.Route.Hops() {
			fmt.Printf("  %3d  %-32s %8.2f ly\n", i+1, hop.To.Name, hop.Distance)
		}
		logger.Stats("Jumps", plan.Route.Jumps())
		logger.Stats("Distance", fmt.Sprintf("%.2f ly", plan.Route.TotalDistance()))
	case plan.Route.Truncated:
		logger.Warn("ROUTE", "Search stopped at its expansion or time limit without reaching the target")
	default:
		logger.Warn("ROUTE", "No route exists with this jump range")
	}
	logger.Stats("Expanded", plan.Route.Expanded)
	logger.Stats("Oracle calls", plan.Route.OracleCalls)
	logger.Stats("Time", plan.Duration.Round(time.Millisecond))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	p, store, err := openPlanner(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	systems, err := p.Complete(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return err
	}
	if len(systems) == 0 {
		logger.Warn("SEARCH", fmt.Sprintf("No systems match %q", args[0]))
		return nil
	}
	for _, s := range systems {
		fmt.Printf("  %-32s %20d  (%.2f, %.2f, %.2f)\n", s.Name, s.Addr, s.Pos.X, s.Pos.Y, s.Pos.Z)
	}
	return nil
}

func runReach(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, store, err := openPlanner(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	jumpRange := reachRange
	if jumpRange == 0 {
		jumpRange = store.LoadRouteConfig(ctx, cfg.Route).JumpRange
	}
	origin, reach, err := p.Reachable(ctx, args[0], jumpRange, reachJumps, reachLimit)
	if err != nil {
		return err
	}
	logger.Section(fmt.Sprintf("Within %d jumps of %s (%.2f ly range)", reachJumps, origin.Name, jumpRange))
	for _, r := range reach {
		fmt.Printf("  %2d  %-32s %8.2f ly\n", r.Jumps, r.Node.Name, r.Node.Pos.DistanceTo(origin.Pos))
	}
	logger.Stats("Systems", len(reach))
	return nil
}
