package evaluation

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type userEvaluator interface {
	EvaluateUser(ctx context.Context, userID int64) (*Result, error)
}

type Handler struct {
	tracker userEvaluator
}

func NewHandler(tracker userEvaluator) *Handler {
	return &Handler{
		tracker: tracker,
	}
}

// HandleAdminEvaluate runs the goal evaluation of the user from the path right away.
func (handler *Handler) HandleAdminEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.evaluation.admin")
	defer span.End()

	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "error, user id invalid", http.StatusBadRequest)
		return
	}

	result, err := handler.tracker.EvaluateUser(ctx, userID)
	if err != nil {
		log.Errorf("evaluate goals of user %d: %s", userID, err)
		if result == nil {
			http.Error(w, "failed to evaluate goals", http.StatusInternalServerError)
			return
		}
		// partial result, some accruals went through
		w.Header().Set("X-Evaluation-Partial", "true")
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("marshal evaluation result: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resultJson)
}
