package performance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/measurements"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=performance_test

type measurementsLister interface {
	List(ctx context.Context, userID int64) ([]measurements.Measurement, error)
}

type goalsLister interface {
	List(ctx context.Context, userID int64) ([]goals.Goal, error)
}

type Response struct {
	Records []Record `json:"records"`
	Cached  bool     `json:"cached"`
}

type Handler struct {
	evaluator    *Evaluator
	measurements measurementsLister
	goals        goalsLister
	cache        *Cache
	now          func() time.Time
}

func NewHandler(
	evaluator *Evaluator,
	measurements measurementsLister,
	goals goalsLister,
	cache *Cache,
) *Handler {
	return &Handler{
		evaluator:    evaluator,
		measurements: measurements,
		goals:        goals,
		cache:        cache,
		now:          time.Now,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.performance.get")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if records, ok := handler.cache.Get(session.UserID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		handler.writeRecords(w, records, true)
		return
	}

	records, err := handler.evaluate(ctx, session.UserID)
	if err != nil {
		log.Errorf("evaluate performance for user %d: %s", session.UserID, err)
		http.Error(w, "failed to evaluate performance", http.StatusInternalServerError)
		return
	}

	handler.cache.Set(session.UserID, records)
	handler.writeRecords(w, records, false)
}

// HandleAdminGet evaluates the performance of the user from the path, bypassing the cache.
func (handler *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.performance.adminget")
	defer span.End()

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	records, err := handler.evaluate(ctx, userID)
	if err != nil {
		log.Errorf("evaluate performance for user %d: %s", userID, err)
		http.Error(w, "failed to evaluate performance", http.StatusInternalServerError)
		return
	}

	handler.writeRecords(w, records, false)
}

func (handler *Handler) evaluate(ctx context.Context, userID int64) ([]Record, error) {
	ms, err := handler.measurements.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	gs, err := handler.goals.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return handler.evaluator.Evaluate(ms, gs, handler.now()), nil
}

func (handler *Handler) writeRecords(w http.ResponseWriter, records []Record, cached bool) {
	if records == nil {
		records = []Record{}
	}
	respJson, err := json.Marshal(Response{Records: records, Cached: cached})
	if err != nil {
		log.Errorf("marshal performance records: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
