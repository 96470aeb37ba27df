package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
	ErrGoalExists   = errors.New("goal for this month already exists")
)

const goalColumns = `id, user_id, month, weight_loss, muscle_gain, body_fat_reduction, status, achieved, created_at, updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, goal Goal) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", goal.UserID))

	if goal.Achieved == nil {
		goal.Achieved = map[Metric]bool{}
	}
	achievedJson, err := json.Marshal(goal.Achieved)
	if err != nil {
		return nil, fmt.Errorf("marshal achieved: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO goal
				(user_id, month, weight_loss, muscle_gain, body_fat_reduction, status, achieved, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING id;`,
		goal.UserID, goal.Month, goal.WeightLoss, goal.MuscleGain, goal.BodyFatReduction,
		goal.Status, achievedJson, goal.CreatedAt,
	).Scan(&id); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrGoalExists
		}
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	goal.ID = id
	goal.UpdatedAt = goal.CreatedAt
	return &goal, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("goal.id", id))

	goal, err := scanGoal(r.db.QueryRow(ctx, `SELECT `+goalColumns+` FROM goal WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return goal, nil
}

// List returns all goals of the user, newest month first.
func (r *Repo) List(ctx context.Context, userID int64) (_ []Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+goalColumns+` FROM goal WHERE user_id = $1 ORDER BY month DESC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return goals, nil
}

// UserIDsWithGoalInProgress lists users having an in-progress goal for the given month.
func (r *Repo) UserIDsWithGoalInProgress(ctx context.Context, month string) (_ []int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.userswithgoal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT user_id FROM goal WHERE month = $1 AND status = $2 ORDER BY user_id;`,
		month, StatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatus moves the goal from one status to another. The update only applies
// if the goal is still in the from status.
func (r *Repo) UpdateStatus(ctx context.Context, id int64, from, to Status, now time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.updatestatus")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("goal.id", id),
		attribute.String("goal.status.from", string(from)),
		attribute.String("goal.status.to", string(to)),
	)

	if !CanTransition(from, to) {
		return ErrInvalidStatusTransition
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE goal SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4;`,
		to, now, id, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidStatusTransition
	}
	return nil
}

func scanGoal(row pgx.Row) (*Goal, error) {
	var (
		goal         Goal
		status       string
		achievedJson []byte
	)
	if err := row.Scan(
		&goal.ID, &goal.UserID, &goal.Month,
		&goal.WeightLoss, &goal.MuscleGain, &goal.BodyFatReduction,
		&status, &achievedJson, &goal.CreatedAt, &goal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	goal.Status = Status(status)
	goal.Achieved = map[Metric]bool{}
	if len(achievedJson) > 0 {
		if err := json.Unmarshal(achievedJson, &goal.Achieved); err != nil {
			return nil, fmt.Errorf("unmarshal achieved: %w", err)
		}
	}
	return &goal, nil
}
