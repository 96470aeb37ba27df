package measurements

import (
	"context"
	"encoding/json"
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

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=measurements_test

type measurementsRepo interface {
	Add(ctx context.Context, m Measurement) (*Measurement, error)
	List(ctx context.Context, userID int64) ([]Measurement, error)
}

// timestamps further ahead than this are rejected, they would stay the latest reading for too long
const maxClockSkew = 5 * time.Minute

type performanceCache interface {
	Invalidate(userID int64)
}

type AddMeasurementRequest struct {
	Timestamp  time.Time          `json:"timestamp"`
	Units      string             `json:"units"`
	Weight     *float64           `json:"weight"`
	BodyFat    *float64           `json:"bodyFat"`
	MuscleMass *float64           `json:"muscleMass"`
	Extra      map[string]float64 `json:"extra"`
}

type Handler struct {
	repo    measurementsRepo
	cache   performanceCache
	metrics *metrics.Manager
}

func NewHandler(
	repo measurementsRepo,
	cache performanceCache,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
	}
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.add")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req AddMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new measurement, unmarshal json params: %s", err)
		http.Error(w, "add measurement failed", http.StatusBadRequest)
		return
	}

	units, err := ParseUnitSystem(req.Units)
	if err != nil {
		http.Error(w, "error, invalid units", http.StatusBadRequest)
		return
	}

	now := time.Now()
	m := Measurement{
		UserID:     session.UserID,
		Timestamp:  req.Timestamp,
		Weight:     req.Weight,
		BodyFat:    req.BodyFat,
		MuscleMass: req.MuscleMass,
		Extra:      req.Extra,
		CreatedAt:  now,
	}
	if !m.HasAnyValue() {
		http.Error(w, "error, measurement has no values", http.StatusBadRequest)
		return
	}
	if invalidValue(m.Weight) || invalidValue(m.MuscleMass) || invalidValue(m.BodyFat) ||
		(m.BodyFat != nil && *m.BodyFat > 100) {
		http.Error(w, "error, invalid measurement value", http.StatusBadRequest)
		return
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	if m.Timestamp.After(now.Add(maxClockSkew)) {
		http.Error(w, "error, measurement timestamp in the future", http.StatusBadRequest)
		return
	}
	if units == UnitSystemMetric {
		m = ToImperial(m)
	}

	added, err := handler.repo.Add(ctx, m)
	if err != nil {
		log.Errorf("failed to add new measurement for user %d: %s", session.UserID, err)
		http.Error(w, "error, failed to add new measurement", http.StatusInternalServerError)
		return
	}

	handler.cache.Invalidate(session.UserID)
	handler.metrics.CounterMeasurements.Inc()
	span.SetAttributes(attribute.Int64("measurement.id", added.ID))

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("failed to marshal new measurement: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("new measurement added: user %d, id %d", added.UserID, added.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.list")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	handler.writeList(ctx, w, session.UserID)
}

// HandleAdminList lists measurements of the user from the path, for admins.
func (handler *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.measurements.adminlist")
	defer span.End()

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	handler.writeList(ctx, w, userID)
}

func (handler *Handler) writeList(ctx context.Context, w http.ResponseWriter, userID int64) {
	list, err := handler.repo.List(ctx, userID)
	if err != nil {
		log.Errorf("list measurements for user %d: %s", userID, err)
		http.Error(w, "failed to get measurements", http.StatusInternalServerError)
		return
	}
	if len(list) == 0 {
		list = []Measurement{}
	}

	listJson, err := json.Marshal(ListResponse{
		Measurements: list,
		Total:        len(list),
	})
	if err != nil {
		log.Errorf("marshal measurements error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, listJson)
}

func invalidValue(v *float64) bool {
	return v != nil && *v < 0
}
