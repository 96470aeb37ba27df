package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2beens/fitcoach/internal/config"
	"github.com/2beens/fitcoach/internal/db"
	"github.com/2beens/fitcoach/internal/evaluation"
	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/logging"
	"github.com/2beens/fitcoach/internal/measurements"
	"github.com/2beens/fitcoach/internal/performance"
	"github.com/2beens/fitcoach/internal/rewards"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/internal/transfer"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// goals_evaluator periodically evaluates the goals of the month and accrues VII-FT
// rewards for every achieved goal metric.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	envFile := flag.String("envfile", ".env", "optional file with secrets as env vars")
	once := flag.Bool("once", false, "run a single evaluation and exit")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("failed to load env file [%s]: %s\n", *envFile, err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	flushLogs := logging.Setup(logging.LoggerSetupParams{
		LogFileName:      "",
		LogToStdout:      true,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "fitcoach-goals-evaluator",
	})
	defer flushLogs()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     os.Getenv("FITCOACH_DB_PASS"),
		TracingEnabled: honeycombEnabled,
	})
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: os.Getenv("FITCOACH_REDIS_PASS"),
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Errorf("close redis client: %s", err)
		}
	}()

	otelShutdown, err := tracing.HoneycombSetup(honeycombEnabled, "fitcoach-goals-evaluator", rdb)
	if err != nil {
		log.Fatalf("tracing setup: %s", err)
	}
	defer otelShutdown()

	promRegistry := metrics.SetupPrometheus(pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	))
	metricsManager := metrics.NewManager("fitcoach", "goals_evaluator", promRegistry)

	measurementsRepo := measurements.NewRepo(dbPool)
	goalsRepo := goals.NewRepo(dbPool)
	ledger := rewards.NewLedger(
		rewards.NewRepo(dbPool),
		goalsRepo,
		rewards.RewardPolicy{
			WeightLoss:       cfg.Rewards.WeightLoss,
			MuscleGain:       cfg.Rewards.MuscleGain,
			BodyFatReduction: cfg.Rewards.BodyFatReduction,
		},
		metricsManager,
	)
	gatewayClient := transfer.NewClient(
		cfg.TransferGatewayURL,
		os.Getenv("FITCOACH_GATEWAY_SECRET"),
		&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   20 * time.Second,
		},
	)

	rewardsService := rewards.NewService(ledger, gatewayClient, rewards.DefaultRetryAttempts)
	tracker := evaluation.NewTracker(
		performance.NewEvaluator(performance.Policy{
			WarningThreshold: cfg.Performance.WarningThreshold,
			SuccessThreshold: cfg.Performance.SuccessThreshold,
		}),
		measurementsRepo,
		goalsRepo,
		rewardsService,
		// the job has its own cache, the service's entries expire by ttl
		performance.NewCache(1, time.Minute, metricsManager),
		metricsManager,
	)

	resubmitAfter := time.Duration(cfg.ClaimResubmitAfterMinutes) * time.Minute
	if *once {
		summary, err := tracker.EvaluateAll(ctx)
		if err != nil {
			log.Errorf("goals evaluation: %s", err)
			os.Exit(1)
		}
		log.Infof("goals evaluation done: %+v", summary)
		if _, err := rewardsService.ResubmitStaleClaims(ctx, resubmitAfter); err != nil {
			log.Errorf("resubmit stale claims: %s", err)
			os.Exit(1)
		}
		return
	}

	metricsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.PrometheusMetricsHost, cfg.PrometheusMetricsPort),
		Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %s", err)
		}
	}()

	interval := time.Duration(cfg.EvaluatorIntervalMinutes) * time.Minute
	log.Infof("goals evaluator running every %s", interval)
	resubmitterDone := make(chan struct{})
	go func() {
		defer close(resubmitterDone)
		rewardsService.RunResubmitter(ctx, resubmitAfter, resubmitAfter)
	}()
	tracker.Run(ctx, interval)
	<-resubmitterDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("metrics server shutdown: %s", err)
	}
	log.Warnln("goals evaluator stopped")
}
