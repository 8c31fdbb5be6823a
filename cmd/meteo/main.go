// Command meteo serves and maintains the county weather-advisory store.
//
//	meteo serve                  HTTP API
//	meteo ingest                 one feed refresh, then exit
//	meteo resolve LAT LON        resolve a point to its county
//	meteo migrate                create or update the schema
//
// Configuration comes from the environment (optionally a .env file).
//
// @title          Meteo Warnings API
// @version        1.0
// @description    County-level severe-weather advisories from the IMGW feed, queried by point or TERYT code.
// @BasePath       /api/v1
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-meteo-warnings/docs"
	"github.com/tbourn/go-meteo-warnings/internal/adapter/feedcache"
	"github.com/tbourn/go-meteo-warnings/internal/adapter/geoportal"
	"github.com/tbourn/go-meteo-warnings/internal/adapter/imgw"
	"github.com/tbourn/go-meteo-warnings/internal/adapter/kafka"
	"github.com/tbourn/go-meteo-warnings/internal/config"
	httpapi "github.com/tbourn/go-meteo-warnings/internal/http"
	"github.com/tbourn/go-meteo-warnings/internal/observability"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
	"github.com/tbourn/go-meteo-warnings/internal/services"
	"github.com/tbourn/go-meteo-warnings/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "meteo",
		Short:         "County weather advisories from the IMGW feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every command shares.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *gorm.DB
	metrics *observability.Metrics
	feed    *imgw.Client
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, nil)

	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	metrics := observability.NewMetrics(nil)
	feed := imgw.NewClient(cfg.Upstream.FeedURL, cfg.Upstream.FeedTimeout, metrics, logger)
	return &app{cfg: cfg, log: logger, db: db, metrics: metrics, feed: feed}, nil
}

func (a *app) resolver() *services.RegionResolver {
	geo := geoportal.NewClient(a.cfg.Upstream.GeoportalURL, a.cfg.Upstream.GeoportalLimit, a.metrics, a.log)
	return services.NewRegionResolver(a.db, geo, a.cfg.CacheEnabled, a.metrics)
}

// ingestor builds the feed ingestor, publishing to Kafka when brokers are
// configured. The returned func releases the publisher.
func (a *app) ingestor() (*services.FeedIngestor, func()) {
	ing := services.NewFeedIngestor(a.db, a.feed, a.cfg.Upstream.FeedTimezone, a.metrics)
	if len(a.cfg.Kafka.Brokers) == 0 {
		return ing, func() {}
	}
	pub := kafka.NewPublisher(a.cfg.Kafka)
	ing.Publisher = pub
	return ing, func() {
		if err := pub.Close(); err != nil {
			a.log.Warn().Err(err).Msg("kafka publisher close")
		}
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, a.cfg.OTEL, version)
	if err != nil {
		a.log.Warn().Err(err).Msg("tracing disabled")
	} else if a.cfg.OTEL.Enabled {
		if err := repo.EnableTracing(a.db); err != nil {
			a.log.Warn().Err(err).Msg("gorm tracing not installed")
		}
	}

	ing, closeIngestor := a.ingestor()
	defer closeIngestor()

	// Live queries go through Redis when configured; everything else hits the
	// feed directly.
	var live services.FeedSource
	if a.cfg.Redis.Addr != "" {
		rdb := feedcache.OpenRedis(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		defer rdb.Close()
		live = feedcache.New(a.feed, feedcache.NewRedisStore(rdb), a.cfg.Redis.LiveTTL, a.log)
	}

	svc := services.NewWarningsService(a.db, a.resolver(), ing, services.NewTemporalQueryEngine(a.db), live)

	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	httpapi.RegisterRoutes(r, a.db, svc, a.cfg)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go a.purgeIdempotency(ctx, time.Hour)

	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}
	if shutdownOTel != nil {
		if err := shutdownOTel(sctx); err != nil {
			a.log.Warn().Err(err).Msg("otel shutdown")
		}
	}
	return nil
}

// purgeIdempotency drops expired idempotency keys every interval until ctx ends.
func (a *app) purgeIdempotency(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, a.db, now)
			if err != nil {
				a.log.Warn().Err(err).Msg("idempotency purge")
				continue
			}
			if n > 0 {
				a.log.Debug().Int64("removed", n).Msg("idempotency purge")
			}
		}
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the feed once and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			ing, closeIngestor := a.ingestor()
			defer closeIngestor()
			n, err := ing.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("stored %d advisories\n", n)
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	var bypass bool

	cmd := &cobra.Command{
		Use:   "resolve LAT LON",
		Short: "Resolve a point to its county",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("lat: %w", err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("lon: %w", err)
			}
			a, err := setup()
			if err != nil {
				return err
			}
			policy := services.PolicyDefault
			if bypass {
				policy = services.PolicyBypass
			}
			res, err := a.resolver().Resolve(cmd.Context(), lat, lon, policy)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().BoolVar(&bypass, "bypass", false, "skip the resolution cache")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			// setup migrates on open.
			if _, err := setup(); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}
