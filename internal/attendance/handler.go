package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=attendance_test

type attendanceRepo interface {
	Mark(ctx context.Context, record Record) (*Record, error)
	List(ctx context.Context, userID int64, from, to time.Time) ([]Record, error)
}

type MarkAttendanceRequest struct {
	// Date is a calendar day, YYYY-MM-DD
	Date   string `json:"date"`
	Status Status `json:"status"`
	Notes  string `json:"notes"`
}

type Handler struct {
	repo    attendanceRepo
	metrics *metrics.Manager
}

func NewHandler(repo attendanceRepo, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
	}
}

// HandleAdminMark marks the attendance of the user from the path for one day.
func (handler *Handler) HandleAdminMark(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.adminmark")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	var req MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("mark attendance, unmarshal json params: %s", err)
		http.Error(w, "mark attendance failed", http.StatusBadRequest)
		return
	}
	if !req.Status.IsValid() {
		http.Error(w, "error, invalid attendance status", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "error, invalid attendance date", http.StatusBadRequest)
		return
	}

	now := time.Now()
	// one day of slack for coaches ahead of UTC
	if date.After(now.UTC().AddDate(0, 0, 1)) {
		http.Error(w, "error, attendance date in the future", http.StatusBadRequest)
		return
	}

	marked, err := handler.repo.Mark(ctx, Record{
		UserID:    userID,
		Date:      date,
		Attended:  req.Status == StatusPresent,
		Notes:     strings.TrimSpace(req.Notes),
		MarkedBy:  session.UserID,
		UpdatedAt: now,
	})
	if err != nil {
		log.Errorf("mark attendance of user %d on %s: %s", userID, req.Date, err)
		http.Error(w, "error, failed to mark attendance", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterAttendance.WithLabelValues(string(req.Status)).Inc()
	span.SetAttributes(attribute.Int64("attendance.id", marked.ID))

	markedJson, err := json.Marshal(marked)
	if err != nil {
		log.Errorf("failed to marshal attendance: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("attendance marked: user %d, %s, %s", userID, req.Date, req.Status)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, markedJson)
}

// HandleList lists the caller's attendance for the month query param, the current month by default.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.list")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	handler.writeList(ctx, w, r, session.UserID)
}

func (handler *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.adminlist")
	defer span.End()

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	handler.writeList(ctx, w, r, userID)
}

func (handler *Handler) writeList(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) {
	month, from, to, err := monthRange(r.URL.Query().Get("month"), time.Now())
	if err != nil {
		http.Error(w, "error, invalid month", http.StatusBadRequest)
		return
	}

	list, err := handler.repo.List(ctx, userID, from, to)
	if err != nil {
		log.Errorf("list attendance for user %d: %s", userID, err)
		http.Error(w, "failed to get attendance", http.StatusInternalServerError)
		return
	}
	if len(list) == 0 {
		list = []Record{}
	}

	listJson, err := json.Marshal(ListResponse{
		Records: list,
		Total:   len(list),
		Summary: Summarize(month, list),
	})
	if err != nil {
		log.Errorf("marshal attendance error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, listJson)
}

// monthRange resolves a month ("YYYY-MM" or a month name, empty for the current one)
// to its first and last day.
func monthRange(month string, now time.Time) (string, time.Time, time.Time, error) {
	if strings.TrimSpace(month) == "" {
		month = goals.CurrentMonth(now)
	}
	normalized, err := goals.NormalizeMonth(month, now)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	first, err := time.Parse("2006-01", normalized)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return normalized, first, first.AddDate(0, 1, -1), nil
}
