package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/pms/internal/config"
	"github.com/ehr/pms/internal/domain/patient"
	"github.com/ehr/pms/internal/platform/db"
	"github.com/ehr/pms/internal/platform/docstore"
	"github.com/ehr/pms/internal/platform/middleware"
	"github.com/ehr/pms/internal/platform/openapi"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "pms-server",
		Short:        "Patient Management System API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the documents table for the postgres or sqlite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			switch cfg.StoreDriver {
			case docstore.DriverPostgres, docstore.DriverSQLite:
			default:
				return fmt.Errorf("migrate only applies to the postgres and sqlite drivers, STORE_DRIVER is %q", cfg.StoreDriver)
			}

			// Opening a SQL backend applies its schema.
			backend, err := docstore.Open(cmd.Context(), cfg.Store())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer backend.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Documents table ready on %s store.\n", backend.Driver())
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate every stored patient and print the BMI table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := docstore.Open(cmd.Context(), cfg.Store())
			if err != nil {
				return err
			}
			defer backend.Close()

			svc := patient.NewService(patient.NewDocumentRepo(backend))
			return runCheck(cmd.Context(), cmd.OutOrStdout(), svc)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runCheck prints one row per valid record and returns an error naming how
// many records failed validation.
func runCheck(ctx context.Context, w io.Writer, svc *patient.Service) error {
	patients, invalid, err := svc.CheckPatients(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHEIGHT\tWEIGHT\tBMI\tVERDICT")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%.2f\t%s\n", p.ID, p.Name, p.Height, p.Weight, p.BMI(), p.Verdict())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(invalid) == 0 {
		fmt.Fprintf(w, "\n%d patient(s) checked, all valid.\n", len(patients))
		return nil
	}
	ids := make([]string, 0, len(invalid))
	for id := range invalid {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(w)
	for _, id := range ids {
		fmt.Fprintf(w, "INVALID %s: %v\n", id, invalid[id])
	}
	return fmt.Errorf("%d of %d stored patient(s) are invalid", len(invalid), len(patients)+len(invalid))
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// newServer wires middleware, the patient API, health and metrics endpoints
// around an already opened store backend.
func newServer(cfg *config.Config, logger zerolog.Logger, backend docstore.Backend, reg *prometheus.Registry) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, "If-None-Match"},
	}))

	var store docstore.Backend = backend
	if cfg.MetricsEnabled {
		m, err := middleware.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
		e.Use(m.Middleware())

		instrumented, err := docstore.Instrument(backend, reg)
		if err != nil {
			return nil, fmt.Errorf("register store metrics: %w", err)
		}
		store = instrumented

		e.GET("/metrics", middleware.MetricsHandler(reg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/store", db.HealthHandler(store, poolOf(backend)))

	api := e.Group("")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	// ETag buffers the response, so it sits outside the deadline and sees
	// the timeout error before anything is written.
	api.Use(middleware.ETag())
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	api.Use(middleware.BodyLimit(cfg.BodyLimit))

	svc := patient.NewService(patient.NewDocumentRepo(store))
	patient.NewHandler(svc).RegisterRoutes(api)

	docs := openapi.NewGenerator("Patient Management System API", version, "http://localhost:"+cfg.Port)
	patient.DescribeRoutes(docs)
	docs.RegisterRoutes(e)

	return e, nil
}

// poolOf returns the connection pool behind a postgres store so the store
// health endpoint can report its stats.
func poolOf(b docstore.Backend) *pgxpool.Pool {
	if pg, ok := b.(*docstore.Postgres); ok {
		return pg.Pool()
	}
	return nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	backend, err := docstore.Open(ctx, cfg.Store())
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open patient store")
	}
	defer backend.Close()
	logger.Info().Str("driver", backend.Driver()).Msg("patient store opened")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e, err := newServer(cfg, logger, backend, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
