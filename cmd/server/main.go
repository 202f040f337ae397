package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/task-hive/taskhive/internal/api"
	"github.com/task-hive/taskhive/internal/api/health"
	"github.com/task-hive/taskhive/internal/metrics"
	"github.com/task-hive/taskhive/internal/storage"
	"github.com/task-hive/taskhive/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "taskhive-server",
	Short: "TaskHive Server - Project management backend",
	Long: `TaskHive Server hosts the REST API for workspaces, projects,
tasks, and notifications, plus the background maintenance loop.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskhive-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Get JWT secret from environment
	jwtSecret := os.Getenv("TASKHIVE_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("TASKHIVE_JWT_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create bootstrap super admin on first run
	if err := store.EnsureSuperAdmin(); err != nil {
		return fmt.Errorf("ensure super admin: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Build API server config
	accessTTL, refreshTTL, lockoutDur := cfg.Auth.TTLs()
	apiCfg := &api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        []byte(jwtSecret),
		AccessTokenTTL:   accessTTL,
		RefreshTokenTTL:  refreshTTL,
		RateLimitPerIP:   cfg.Auth.RateLimitPerIP,
		RateLimitPerUser: cfg.Auth.RateLimitPerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  lockoutDur,
		Mail:             cfg.Mail,
		Verbose:          cfg.Verbose,
	}

	srv, err := api.New(apiCfg, store)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))

	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddress)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting taskhive-server %s", config.Version)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gCtx)
	})

	g.Go(func() error {
		return metricsSrv.Start()
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runJanitor(gCtx, srv, store, cfg.Janitor.SweepInterval())
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// runJanitor periodically expires invites, purges archived workspaces
// past their grace period, and drops stale refresh tokens.
func runJanitor(ctx context.Context, srv *api.Server, store storage.Storage, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := srv.Invites().Sweep(ctx); err != nil {
			log.Printf("janitor: sweep invites: %v", err)
		} else if n > 0 {
			log.Printf("janitor: expired %d invites", n)
			metrics.InvitesExpired.Add(float64(n))
			metrics.JanitorReapedTotal.WithLabelValues("invites").Add(float64(n))
		}
		metrics.JanitorSweepsTotal.WithLabelValues("invites").Inc()

		if n, err := store.Workspaces().PurgeExpiredArchived(ctx, time.Now()); err != nil {
			log.Printf("janitor: purge workspaces: %v", err)
		} else if n > 0 {
			log.Printf("janitor: purged %d archived workspaces", n)
			metrics.JanitorReapedTotal.WithLabelValues("workspaces").Add(float64(n))
		}
		metrics.JanitorSweepsTotal.WithLabelValues("workspaces").Inc()

		if n, err := srv.Tokens().CleanupExpiredTokens(ctx); err != nil {
			log.Printf("janitor: cleanup tokens: %v", err)
		} else if n > 0 {
			metrics.JanitorReapedTotal.WithLabelValues("tokens").Add(float64(n))
		}
		metrics.JanitorSweepsTotal.WithLabelValues("tokens").Inc()
	}
}
