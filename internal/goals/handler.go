package goals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=goals_test

type goalsRepo interface {
	Add(ctx context.Context, goal Goal) (*Goal, error)
	Get(ctx context.Context, id int64) (*Goal, error)
	List(ctx context.Context, userID int64) ([]Goal, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status, now time.Time) error
}

type performanceCache interface {
	Invalidate(userID int64)
}

type AddGoalRequest struct {
	Month            string  `json:"month"`
	WeightLoss       float64 `json:"weightLoss"`
	MuscleGain       float64 `json:"muscleGain"`
	BodyFatReduction float64 `json:"bodyFatReduction"`
}

type Handler struct {
	repo    goalsRepo
	cache   performanceCache
	metrics *metrics.Manager
	now     func() time.Time
}

func NewHandler(
	repo goalsRepo,
	cache performanceCache,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		now:     time.Now,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.add")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req AddGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new goal, unmarshal json params: %s", err)
		http.Error(w, "add goal failed", http.StatusBadRequest)
		return
	}

	now := handler.now()
	month, err := NormalizeMonth(req.Month, now)
	if err != nil {
		http.Error(w, "error, invalid month", http.StatusBadRequest)
		return
	}
	if req.WeightLoss < 0 || req.MuscleGain < 0 || req.BodyFatReduction < 0 {
		http.Error(w, "error, goal targets must not be negative", http.StatusBadRequest)
		return
	}

	goal := Goal{
		UserID:           session.UserID,
		Month:            month,
		WeightLoss:       req.WeightLoss,
		MuscleGain:       req.MuscleGain,
		BodyFatReduction: req.BodyFatReduction,
		Status:           StatusInProgress,
		Achieved:         map[Metric]bool{},
		CreatedAt:        now,
	}
	if len(goal.TargetedMetrics()) == 0 {
		http.Error(w, "error, goal has no targets", http.StatusBadRequest)
		return
	}

	added, err := handler.repo.Add(ctx, goal)
	if err != nil {
		if errors.Is(err, ErrGoalExists) {
			http.Error(w, "error, goal for this month already exists", http.StatusConflict)
			return
		}
		log.Errorf("failed to add new goal for user %d [%s]: %s", session.UserID, month, err)
		http.Error(w, "error, failed to add new goal", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(session.UserID)
	handler.metrics.CounterGoals.Inc()
	span.SetAttributes(attribute.Int64("goal.id", added.ID))

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("failed to marshal new goal: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("new goal added: user %d, month %s, id %d", added.UserID, added.Month, added.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.list")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	handler.writeList(ctx, w, session.UserID)
}

func (handler *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.adminlist")
	defer span.End()

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	handler.writeList(ctx, w, userID)
}

func (handler *Handler) HandleAdminCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.admincancel")
	defer span.End()

	goalID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || goalID <= 0 {
		http.Error(w, "error, goal id invalid", http.StatusBadRequest)
		return
	}

	goal, err := handler.repo.Get(ctx, goalID)
	if err != nil {
		if errors.Is(err, ErrGoalNotFound) {
			http.Error(w, "error, goal not found", http.StatusNotFound)
			return
		}
		log.Errorf("cancel goal %d, get: %s", goalID, err)
		http.Error(w, "error, failed to cancel goal", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.UpdateStatus(ctx, goalID, goal.Status, StatusCancelled, handler.now()); err != nil {
		if errors.Is(err, ErrInvalidStatusTransition) {
			http.Error(w, "error, goal is not in progress", http.StatusConflict)
			return
		}
		log.Errorf("cancel goal %d: %s", goalID, err)
		http.Error(w, "error, failed to cancel goal", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(goal.UserID)
	log.Debugf("goal %d of user %d cancelled", goalID, goal.UserID)
	pkg.WriteResponse(w, pkg.ContentType.Text, "cancelled:"+strconv.FormatInt(goalID, 10), http.StatusOK)
}

func (handler *Handler) writeList(ctx context.Context, w http.ResponseWriter, userID int64) {
	list, err := handler.repo.List(ctx, userID)
	if err != nil {
		log.Errorf("list goals for user %d: %s", userID, err)
		http.Error(w, "failed to get goals", http.StatusInternalServerError)
		return
	}
	if len(list) == 0 {
		list = []Goal{}
	}

	listJson, err := json.Marshal(ListResponse{
		Goals: list,
		Total: len(list),
	})
	if err != nil {
		log.Errorf("marshal goals error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, listJson)
}
