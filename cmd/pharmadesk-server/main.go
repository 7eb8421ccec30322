package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/pharmadesk/pharmadesk/internal/config"
	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/seed"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	rootCmd := &cobra.Command{
		Use:          "pharmadesk-server",
		Short:        "Clinic and pharmacy management API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clinicCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes JSON to stdout, or console output in development, and
// installs itself as the global logger used by the domain packages.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	logger = logger.Level(level)
	log.Logger = logger
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to one clinic schema or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinic, _ := cmd.Flags().GetString("clinic")
			all, _ := cmd.Flags().GetBool("all")
			to, _ := cmd.Flags().GetInt("to")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemas := []string{db.SchemaName(orDefault(clinic, cfg.DefaultClinic))}
			if all {
				if schemas, err = db.ClinicSchemas(ctx, pool); err != nil {
					return err
				}
			}

			migrator := db.NewMigrator(pool, dir)
			for _, schema := range schemas {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := migrator.UpTo(ctx, schema, to)
				if err != nil {
					return fmt.Errorf("migration failed on %s: %w", schema, err)
				}
				fmt.Printf("Applied %d migration(s) to %s.\n", count, schema)
			}
			return nil
		},
	}
	upCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	upCmd.Flags().Bool("all", false, "Migrate every clinic schema in the database")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinic, _ := cmd.Flags().GetString("clinic")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(orDefault(clinic, cfg.DefaultClinic))
			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinic schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply all migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return errors.New("--name is required")
			}
			if !db.ValidClinicID(name) {
				return fmt.Errorf("invalid clinic identifier %q: use letters, digits and underscores", name)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Printf("Clinic created. Send requests with %s: %s\n", db.ClinicHeader, name)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample catalog into a clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinic, _ := cmd.Flags().GetString("clinic")
			file, _ := cmd.Flags().GetString("medicines")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			newLogger(cfg)
			if cfg.UseMemory() {
				return errors.New("seed writes to postgres; with STORAGE_DRIVER=memory set SEED_DEMO=true instead")
			}

			var medicines []seed.Medicine
			if file != "" {
				if medicines, err = seed.LoadMedicinesFile(file); err != nil {
					return err
				}
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.PinClinic(ctx, pool, orDefault(clinic, cfg.DefaultClinic))
			if err != nil {
				return err
			}
			defer release()

			a := newApp(cfg, appDeps{pool: pool})
			report, err := applySeed(ctx, a, medicines)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}
	cmd.Flags().String("clinic", "", "Clinic identifier (defaults to DEFAULT_CLINIC)")
	cmd.Flags().String("medicines", "", "CSV file replacing the built-in medicine list")
	return cmd
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := appDeps{}
	if !cfg.UseMemory() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		deps.pool = pool
		logger.Info().Msg("connected to database")
	}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		deps.redis = client
		logger.Info().Msg("connected to redis")
	}

	a := newApp(cfg, deps)
	a.startBackground(ctx)

	if err := a.settings.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("stored settings unavailable, using defaults")
	}

	if cfg.SeedDemo && cfg.UseMemory() {
		report, err := applySeed(db.WithClinic(ctx, cfg.DefaultClinic), a, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("demo seed failed")
		}
		logger.Info().Str("seed", report.String()).Msg("demo data loaded")
	}

	e := a.server(logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
