package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/fitcoach/internal/attendance"
	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/config"
	"github.com/2beens/fitcoach/internal/db"
	"github.com/2beens/fitcoach/internal/evaluation"
	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/measurements"
	"github.com/2beens/fitcoach/internal/middleware"
	"github.com/2beens/fitcoach/internal/performance"
	"github.com/2beens/fitcoach/internal/rewards"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/internal/transfer"
	"github.com/2beens/fitcoach/internal/users"
	"github.com/2beens/fitcoach/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	gatewaySecret     string // shared with the token transfer gateway, guards its callbacks
	versionInfo       string

	config         *config.Config
	dbPool         *pgxpool.Pool
	redisClient    *redis.Client
	loginChecker   *auth.LoginChecker
	authService    *auth.Service
	gatewayClient  *transfer.Client
	rateLimiter    middleware.RequestRateLimiter
	performanceTTL time.Duration

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	DBPassword              string
	RedisPassword           string
	GatewaySecret           string
	AdminEmail              string
	AdminPasswordHash       string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fitcoach", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(auth.DefaultTTL, rdb)
	go func() {
		ticker := time.NewTicker(8 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := authService.ScanAndClean(ctx); removed > 0 {
					log.Infof("removed %d stale sessions", removed)
				}
			}
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitcoach-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   20 * time.Second,
	}

	if params.AdminEmail != "" && params.AdminPasswordHash != "" {
		if err := ensureAdmin(ctx, users.NewRepo(dbPool), params.AdminEmail, params.AdminPasswordHash); err != nil {
			log.Errorf("ensure admin user [%s]: %s", params.AdminEmail, err)
		}
	}

	if params.Config.TransferGatewayURL == "" {
		log.Warnln("transfer gateway url not set, VII-FT claims will fail")
	}

	return &Server{
		config:        params.Config,
		dbPool:        dbPool,
		gatewaySecret: params.GatewaySecret,
		versionInfo:   params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),
		gatewayClient: transfer.NewClient(
			params.Config.TransferGatewayURL,
			params.GatewaySecret,
			tracedHttpClient,
		),
		rateLimiter:    redis_rate.NewLimiter(rdb),
		performanceTTL: time.Duration(params.Config.PerformanceCacheTTLSeconds) * time.Second,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET", "OPTIONS").Name("root")
	r.HandleFunc("/health", s.handleRoot).Methods("GET").Name("health")
	r.HandleFunc("/version", s.handleVersion).Methods("GET").Name("version")

	usersRepo := users.NewRepo(s.dbPool)
	measurementsRepo := measurements.NewRepo(s.dbPool)
	goalsRepo := goals.NewRepo(s.dbPool)
	rewardsRepo := rewards.NewRepo(s.dbPool)

	performanceCache := performance.NewCache(s.config.PerformanceCacheSizeMB, s.performanceTTL, s.metricsManager)
	evaluator := performance.NewEvaluator(performance.Policy{
		WarningThreshold: s.config.Performance.WarningThreshold,
		SuccessThreshold: s.config.Performance.SuccessThreshold,
	})

	ledger := rewards.NewLedger(
		rewardsRepo,
		goalsRepo,
		rewards.RewardPolicy{
			WeightLoss:       s.config.Rewards.WeightLoss,
			MuscleGain:       s.config.Rewards.MuscleGain,
			BodyFatReduction: s.config.Rewards.BodyFatReduction,
		},
		s.metricsManager,
	)
	rewardsService := rewards.NewService(ledger, s.gatewayClient, rewards.DefaultRetryAttempts)
	tracker := evaluation.NewTracker(
		evaluator,
		measurementsRepo,
		goalsRepo,
		rewardsService,
		performanceCache,
		s.metricsManager,
	)

	// users and sessions
	usersHandler := users.NewHandler(usersRepo, s.authService)
	loginSubrouter := r.PathPrefix("/api").Subrouter()
	loginSubrouter.HandleFunc("/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	loginSubrouter.HandleFunc("/login", usersHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	// rate limit register and login per client ip to slow down password guessing
	loginSubrouter.Use(middleware.RateLimit(
		s.rateLimiter, "login", s.config.LoginRateLimitAllowedPerMin, middleware.KeyByIP, s.metricsManager,
	))
	r.HandleFunc("/api/logout", usersHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")

	measurementsHandler := measurements.NewHandler(measurementsRepo, performanceCache, s.metricsManager)
	r.HandleFunc("/api/measurements", measurementsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-measurement")
	r.HandleFunc("/api/measurements", measurementsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-measurements")

	goalsHandler := goals.NewHandler(goalsRepo, performanceCache, s.metricsManager)
	r.HandleFunc("/api/goals", goalsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-goal")
	r.HandleFunc("/api/goals", goalsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-goals")

	performanceHandler := performance.NewHandler(evaluator, measurementsRepo, goalsRepo, performanceCache)
	r.HandleFunc("/api/performance", performanceHandler.HandleGet).Methods("GET", "OPTIONS").Name("performance")

	attendanceHandler := attendance.NewHandler(attendance.NewRepo(s.dbPool), s.metricsManager)
	r.HandleFunc("/api/attendance", attendanceHandler.HandleList).Methods("GET", "OPTIONS").Name("list-attendance")

	// VII-FT rewards
	rewardsHandler := rewards.NewHandler(rewardsService)
	r.HandleFunc("/api/viift/balance", rewardsHandler.HandleBalance).Methods("GET", "OPTIONS").Name("viift-balance")
	r.HandleFunc("/api/viift/completed-goals", rewardsHandler.HandleCompletedGoals).Methods("GET", "OPTIONS").Name("viift-completed-goals")
	r.HandleFunc("/api/viift/transactions", rewardsHandler.HandleTransactions).Methods("GET", "OPTIONS").Name("viift-transactions")
	r.HandleFunc("/api/viift/wallet", rewardsHandler.HandleConnectWallet).Methods("POST", "OPTIONS").Name("viift-wallet")
	r.HandleFunc("/api/viift/wallet/trustline", rewardsHandler.HandleRequestTrustLine).Methods("POST", "OPTIONS").Name("viift-trustline-request")

	claimSubrouter := r.PathPrefix("/api/viift/claim").Subrouter()
	claimSubrouter.HandleFunc("", rewardsHandler.HandleClaim).Methods("POST", "OPTIONS").Name("viift-claim")
	claimSubrouter.Use(middleware.RateLimit(
		s.rateLimiter, "claim", s.config.ClaimRateLimitAllowedPerMin, middleware.KeyBySessionUser, s.metricsManager,
	))

	// transfer gateway callbacks
	gatewaySubrouter := r.PathPrefix("/api/viift").Subrouter()
	gatewaySubrouter.HandleFunc("/trustline/{userId}/confirm", rewardsHandler.HandleTrustLineConfirm).Methods("POST").Name("viift-trustline-confirm")
	gatewaySubrouter.HandleFunc("/trustline/{userId}/fail", rewardsHandler.HandleTrustLineFail).Methods("POST").Name("viift-trustline-fail")
	gatewaySubrouter.HandleFunc("/transfers/{id}/confirm", rewardsHandler.HandleTransferConfirm).Methods("POST").Name("viift-transfer-confirm")
	gatewaySubrouter.HandleFunc("/transfers/{id}/fail", rewardsHandler.HandleTransferFail).Methods("POST").Name("viift-transfer-fail")
	gatewaySubrouter.Use(middleware.GatewaySecret(s.gatewaySecret))

	// admin, role checked by the auth middleware
	evaluationHandler := evaluation.NewHandler(tracker)
	r.HandleFunc("/api/admin/users/{id}/measurements", measurementsHandler.HandleAdminList).Methods("GET", "OPTIONS").Name("admin-measurements")
	r.HandleFunc("/api/admin/users/{id}/goals", goalsHandler.HandleAdminList).Methods("GET", "OPTIONS").Name("admin-goals")
	r.HandleFunc("/api/admin/users/{id}/goals/evaluate", evaluationHandler.HandleAdminEvaluate).Methods("POST", "OPTIONS").Name("admin-goals-evaluate")
	r.HandleFunc("/api/admin/users/{id}/attendance", attendanceHandler.HandleAdminMark).Methods("POST", "OPTIONS").Name("admin-attendance-mark")
	r.HandleFunc("/api/admin/users/{id}/attendance", attendanceHandler.HandleAdminList).Methods("GET", "OPTIONS").Name("admin-attendance")
	r.HandleFunc("/api/admin/users/{id}/performance", performanceHandler.HandleAdminGet).Methods("GET", "OPTIONS").Name("admin-performance")
	r.HandleFunc("/api/admin/users/{id}/viift/balance", rewardsHandler.HandleAdminBalance).Methods("GET", "OPTIONS").Name("admin-viift-balance")
	r.HandleFunc("/api/admin/goals/{id}/cancel", goalsHandler.HandleAdminCancel).Methods("POST", "OPTIONS").Name("admin-goal-cancel")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins...))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

// ensureAdmin creates the admin account on first start. An existing account is left as is.
func ensureAdmin(ctx context.Context, repo *users.Repo, email, passwordHash string) error {
	_, err := repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return err
	}

	admin, err := repo.Add(ctx, users.User{
		Email:        email,
		Name:         "admin",
		Role:         auth.RoleAdmin,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	log.Infof("admin user created: %d", admin.ID)
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, s.versionInfo)
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
