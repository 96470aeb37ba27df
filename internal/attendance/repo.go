package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Mark stores the record, replacing an earlier mark of the same user and day.
func (r *Repo) Mark(ctx context.Context, record Record) (_ *Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.attendance.mark")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("user.id", record.UserID),
		attribute.String("date", record.Date.Format(dateLayout)),
	)

	if record.UserID <= 0 || record.Date.IsZero() {
		return nil, errors.New("attendance user or date empty")
	}

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO attendance
				(user_id, attended_on, attended, notes, marked_by, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (user_id, attended_on) DO UPDATE
				SET attended = EXCLUDED.attended,
					notes = EXCLUDED.notes,
					marked_by = EXCLUDED.marked_by,
					updated_at = EXCLUDED.updated_at
			RETURNING id, created_at;`,
		record.UserID, record.Date, record.Attended, record.Notes, record.MarkedBy, record.UpdatedAt,
	).Scan(&record.ID, &record.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}

	return &record, nil
}

// List returns the records of the user between from and to, both days included, oldest first.
func (r *Repo) List(ctx context.Context, userID int64, from, to time.Time) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.attendance.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("from", from.Format(dateLayout)),
		attribute.String("to", to.Format(dateLayout)),
	)

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, attended_on, attended, COALESCE(notes, ''), marked_by, created_at, updated_at
			FROM attendance
			WHERE user_id = $1 AND attended_on >= $2 AND attended_on <= $3
			ORDER BY attended_on ASC;`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Date, &rec.Attended, &rec.Notes, &rec.MarkedBy, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
