package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/measurements"
	"github.com/2beens/fitcoach/internal/performance"
	"github.com/2beens/fitcoach/internal/rewards"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

//go:generate mockgen -source=$GOFILE -destination=tracker_mocks_test.go -package=evaluation_test

type measurementsLister interface {
	List(ctx context.Context, userID int64) ([]measurements.Measurement, error)
}

type goalsStore interface {
	Get(ctx context.Context, id int64) (*goals.Goal, error)
	List(ctx context.Context, userID int64) ([]goals.Goal, error)
	UpdateStatus(ctx context.Context, id int64, from, to goals.Status, now time.Time) error
	UserIDsWithGoalInProgress(ctx context.Context, month string) ([]int64, error)
}

type accruer interface {
	Accrue(ctx context.Context, goalID int64, metric goals.Metric, achievedValue, targetValue float64) (*rewards.CompletedGoal, error)
}

type performanceCache interface {
	Invalidate(userID int64)
}

// Result is the outcome of evaluating one user's goal of the month.
type Result struct {
	UserID        int64                   `json:"userId"`
	GoalID        int64                   `json:"goalId,omitempty"`
	Records       []performance.Record    `json:"records"`
	Accrued       []rewards.CompletedGoal `json:"accrued"`
	GoalCompleted bool                    `json:"goalCompleted"`
}

type Summary struct {
	Users         int `json:"users"`
	Accruals      int `json:"accruals"`
	GoalsComplete int `json:"goalsCompleted"`
	Failed        int `json:"failed"`
}

// Tracker turns performance evaluations into rewards: every goal metric evaluated as
// success gets accrued once, and a goal whose targets are all achieved is completed.
type Tracker struct {
	evaluator    *performance.Evaluator
	measurements measurementsLister
	goals        goalsStore
	rewards      accruer
	cache        performanceCache
	metrics      *metrics.Manager
	now          func() time.Time
}

func NewTracker(
	evaluator *performance.Evaluator,
	measurements measurementsLister,
	goals goalsStore,
	rewards accruer,
	cache performanceCache,
	metrics *metrics.Manager,
) *Tracker {
	return &Tracker{
		evaluator:    evaluator,
		measurements: measurements,
		goals:        goals,
		rewards:      rewards,
		cache:        cache,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (t *Tracker) EvaluateUser(ctx context.Context, userID int64) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tracker.evaluateuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	now := t.now()
	result := &Result{
		UserID:  userID,
		Records: []performance.Record{},
		Accrued: []rewards.CompletedGoal{},
	}

	ms, err := t.measurements.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	gs, err := t.goals.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	result.Records = t.evaluator.Evaluate(ms, gs, now)
	goal, ok := performance.CurrentGoal(gs, now)
	if !ok {
		return result, nil
	}
	result.GoalID = goal.ID
	if goal.Status != goals.StatusInProgress {
		return result, nil
	}

	var accrueErr error
	for _, record := range result.Records {
		if record.Status != performance.StatusSuccess || goal.IsAchieved(record.Key) {
			continue
		}

		completed, err := t.rewards.Accrue(ctx, goal.ID, record.Key, record.Delta, record.Target)
		if err != nil {
			if errors.Is(err, rewards.ErrDuplicateAccrual) {
				continue
			}
			accrueErr = multierr.Append(accrueErr, fmt.Errorf("accrue %s: %w", record.Key, err))
			continue
		}
		result.Accrued = append(result.Accrued, *completed)
	}

	if len(result.Accrued) > 0 {
		t.cache.Invalidate(userID)
		log.Debugf("tracker: user %d, goal %d: %d metrics accrued", userID, goal.ID, len(result.Accrued))
	}

	completed, err := t.completeGoal(ctx, goal.ID, now)
	if err != nil {
		return result, multierr.Append(accrueErr, err)
	}
	result.GoalCompleted = completed

	return result, accrueErr
}

// EvaluateAll evaluates every user with an in-progress goal this month. A failing user
// does not stop the run, all errors are returned together.
func (t *Tracker) EvaluateAll(ctx context.Context) (_ Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tracker.evaluateall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	start := time.Now()
	defer func() {
		t.metrics.HistEvaluatorRunDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			t.metrics.CounterEvaluatorRuns.WithLabelValues("failure").Inc()
		} else {
			t.metrics.CounterEvaluatorRuns.WithLabelValues("success").Inc()
		}
	}()

	var summary Summary
	month := goals.CurrentMonth(t.now())
	userIDs, err := t.goals.UserIDsWithGoalInProgress(ctx, month)
	if err != nil {
		return summary, fmt.Errorf("list users with goals for %s: %w", month, err)
	}
	span.SetAttributes(attribute.Int("users.count", len(userIDs)))

	var runErr error
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return summary, multierr.Append(runErr, ctx.Err())
		}

		summary.Users++
		result, err := t.EvaluateUser(ctx, userID)
		if err != nil {
			summary.Failed++
			runErr = multierr.Append(runErr, fmt.Errorf("user %d: %w", userID, err))
		}
		if result != nil {
			summary.Accruals += len(result.Accrued)
			if result.GoalCompleted {
				summary.GoalsComplete++
			}
		}
	}

	log.Printf("tracker: evaluated %d users for %s: %d accruals, %d goals completed, %d failed",
		summary.Users, month, summary.Accruals, summary.GoalsComplete, summary.Failed)
	return summary, runErr
}

// Run evaluates all users every interval, until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := t.EvaluateAll(ctx); err != nil {
			log.Errorf("tracker: evaluation run: %s", err)
		}

		select {
		case <-ctx.Done():
			log.Debugln("tracker: stopped")
			return
		case <-ticker.C:
		}
	}
}

func (t *Tracker) completeGoal(ctx context.Context, goalID int64, now time.Time) (bool, error) {
	goal, err := t.goals.Get(ctx, goalID)
	if err != nil {
		return false, fmt.Errorf("reload goal %d: %w", goalID, err)
	}
	if goal.Status != goals.StatusInProgress || !goal.AllTargetsAchieved() {
		return false, nil
	}

	if err := t.goals.UpdateStatus(ctx, goalID, goals.StatusInProgress, goals.StatusCompleted, now); err != nil {
		if errors.Is(err, goals.ErrInvalidStatusTransition) {
			// cancelled or completed in the meantime
			return false, nil
		}
		return false, fmt.Errorf("complete goal %d: %w", goalID, err)
	}

	t.cache.Invalidate(goal.UserID)
	log.Debugf("tracker: goal %d of user %d completed", goalID, goal.UserID)
	return true, nil
}
