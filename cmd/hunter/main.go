package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/leakhunter/internal/api"
	apphunting "github.com/ahrav/leakhunter/internal/app/hunting"
	"github.com/ahrav/leakhunter/internal/config"
	"github.com/ahrav/leakhunter/internal/domain/rules"
	bqcorpus "github.com/ahrav/leakhunter/internal/infra/corpus/bigquery"
	leakspg "github.com/ahrav/leakhunter/internal/infra/storage/leaks/postgres"
	"github.com/ahrav/leakhunter/internal/infra/verifier/azureai"
	"github.com/ahrav/leakhunter/pkg/common/logger"
	"github.com/ahrav/leakhunter/pkg/common/otel"
)

var build = "develop"

const serviceType = "hunter"

func main() {
	// Set the correct number of threads for the service.
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("HUNTER-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"build":    build,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	// -------------------------------------------------------------------------
	// Configuration

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// -------------------------------------------------------------------------
	// Ruleset

	ruleset := rules.Default()
	if cfg.RulesetPath != "" {
		ruleset, err = rules.LoadFile(cfg.RulesetPath)
		if err != nil {
			return fmt.Errorf("loading ruleset: %w", err)
		}
	}
	log.Info(ctx, "startup", "status", "ruleset loaded",
		"rules", len(ruleset.Rules()), "ruleset_hash", ruleset.Hash())

	// -------------------------------------------------------------------------
	// Start Tracing Support

	var tracer trace.Tracer = noop.NewTracerProvider().Tracer(serviceType)
	teardown := func(context.Context) {}
	if cfg.Telemetry.Enabled {
		log.Info(ctx, "startup", "status", "initializing tracing support")

		traceProvider, shutdownTelemetry, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      cfg.ServiceName,
			ExporterEndpoint: cfg.Telemetry.ExporterEndpoint,
			ExcludedRoutes: map[string]struct{}{
				"/v1/health":    {},
				"/v1/readiness": {},
			},
			Probability: cfg.Telemetry.SampleRate,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"hostname":         hostname,
			},
			InsecureExporter: true,
		})
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		tracer = traceProvider.Tracer(cfg.ServiceName)
		teardown = shutdownTelemetry
	}
	defer teardown(ctx)

	// -------------------------------------------------------------------------
	// Database Support

	poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg.Postgres))
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConns = 10
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating db pool: %w", err)
	}
	defer pool.Close()

	leakStore := leakspg.NewLeakStore(pool, tracer)

	// -------------------------------------------------------------------------
	// Corpus Support

	log.Info(ctx, "startup", "status", "initializing corpus client",
		"project_id", cfg.BigQuery.ProjectID, "dataset", cfg.BigQuery.Dataset)

	bqClient, err := bigquery.NewClient(ctx, cfg.BigQuery.ProjectID)
	if err != nil {
		return fmt.Errorf("creating bigquery client: %w", err)
	}
	defer bqClient.Close()

	corpus := bqcorpus.NewCorpus(bqClient, cfg.BigQuery.Dataset, ruleset, log, tracer)

	// -------------------------------------------------------------------------
	// Verifier Support

	verifier, err := azureai.NewVerifier(
		cfg.AzureAI.Endpoint,
		cfg.AzureAI.APIKey,
		cfg.AzureAI.Deployment,
		log,
		tracer,
	)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}

	// -------------------------------------------------------------------------
	// Orchestrator

	mp := otel.GetMeterProvider()
	huntMetrics, err := apphunting.NewOtelMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating hunt metrics: %w", err)
	}

	orchestrator := apphunting.NewOrchestrator(
		apphunting.Config{
			QueryLimit:       cfg.QueryLimit,
			QueryTimeout:     cfg.QueryTimeout,
			VerifyWorkers:    cfg.VerifyWorkers,
			VerifyTimeout:    cfg.VerifyTimeout,
			VerifyRatePerSec: cfg.VerifyRatePerSec,
		},
		ruleset,
		corpus,
		verifier,
		leakStore,
		log,
		tracer,
		huntMetrics,
	)

	// -------------------------------------------------------------------------
	// Start API Service

	log.Info(ctx, "startup", "status", "initializing API support")

	apiMetrics, err := api.NewAPIMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating api metrics: %w", err)
	}

	server := api.NewServer(
		cfg.HTTPListenAddr,
		cfg.ShutdownTimeout,
		orchestrator,
		leakStore,
		log,
		tracer,
		apiMetrics,
	)

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start(serverCtx)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig.String())
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig.String())

		cancel()
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "shutdown", "status", "server stopped", "err", err)
		}
	}

	return nil
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)
}
