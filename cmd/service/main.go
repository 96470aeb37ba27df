package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2beens/fitcoach/internal"
	"github.com/2beens/fitcoach/internal/config"
	"github.com/2beens/fitcoach/internal/logging"
	"github.com/2beens/fitcoach/pkg"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// secrets never live in config.toml, they come from the environment (or a local .env file)
type secrets struct {
	dbPassword        string
	redisPassword     string
	gatewaySecret     string
	adminEmail        string
	adminPasswordHash string
	sentryDSN         string
	honeycombEnabled  bool
}

func secretsFromEnv() secrets {
	return secrets{
		dbPassword:        os.Getenv("FITCOACH_DB_PASS"),
		redisPassword:     os.Getenv("FITCOACH_REDIS_PASS"),
		gatewaySecret:     os.Getenv("FITCOACH_GATEWAY_SECRET"),
		adminEmail:        os.Getenv("FITCOACH_ADMIN_EMAIL"),
		adminPasswordHash: os.Getenv("FITCOACH_ADMIN_PASSWORD_HASH"),
		sentryDSN:         os.Getenv("SENTRY_DSN"),
		honeycombEnabled:  os.Getenv("HONEYCOMB_ENABLED") == "true",
	}
}

// warnMissing only logs, the service still starts with whatever is set
func (s secrets) warnMissing() {
	if s.dbPassword == "" {
		log.Warnln("db password not set. use FITCOACH_DB_PASS")
	}
	if s.redisPassword == "" {
		log.Errorf("redis password not set. use FITCOACH_REDIS_PASS")
	}
	if s.gatewaySecret == "" {
		log.Errorf("transfer gateway secret not set, gateway callbacks will be rejected. use FITCOACH_GATEWAY_SECRET")
	}
	if s.adminEmail == "" || s.adminPasswordHash == "" {
		log.Warnln("admin email and password hash not set. use FITCOACH_ADMIN_EMAIL and FITCOACH_ADMIN_PASSWORD_HASH")
	}
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}
	if !s.honeycombEnabled {
		log.Debugln("honeycomb tracing disabled")
	} else if os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Warnln("HONEYCOMB_API_KEY env var not set")
	}
}

func main() {
	fmt.Println("starting fitcoach service ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	envFile := flag.String("envfile", ".env", "optional file with secrets as env vars")
	flag.Parse()

	// real env vars win over the ones from the file
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("failed to load env file [%s]: %s\n", *envFile, err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sec := secretsFromEnv()
	flushLogs := logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sec.sentryDSN,
		SentryServerName: "fitcoach-service",
	})
	defer flushLogs()

	log.Warnf("---->> running in [%s] environment, port %d", cfg.Environment, cfg.Port)
	sec.warnMissing()

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			DBPassword:              sec.dbPassword,
			RedisPassword:           sec.redisPassword,
			GatewaySecret:           sec.gatewaySecret,
			AdminEmail:              sec.adminEmail,
			AdminPasswordHash:       sec.adminPasswordHash,
			HoneycombTracingEnabled: sec.honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	<-ctx.Done()
	log.Warnln("shutdown signal received, stopping ...")
	server.GracefulShutdown()
}

// tryGetLastCommitHash assumes the binary runs from the repo root
func tryGetLastCommitHash() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(pkg.BytesToString(out)), nil
}
