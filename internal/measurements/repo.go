package measurements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
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

func (r *Repo) Add(ctx context.Context, m Measurement) (_ *Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", m.UserID))

	if m.UserID <= 0 || m.Timestamp.IsZero() {
		return nil, errors.New("measurement user or timestamp empty")
	}

	extraJson, err := json.Marshal(m.Extra)
	if err != nil {
		return nil, fmt.Errorf("marshal extra: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO measurement
				(user_id, measured_at, weight, body_fat, muscle_mass, extra, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		m.UserID, m.Timestamp, m.Weight, m.BodyFat, m.MuscleMass, extraJson, m.CreatedAt,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert measurement: %w", err)
	}

	m.ID = id
	return &m, nil
}

// List returns all measurements of the user, oldest first.
func (r *Repo) List(ctx context.Context, userID int64) (_ []Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.measurements.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, measured_at, weight, body_fat, muscle_mass, extra, created_at
			FROM measurement
			WHERE user_id = $1
			ORDER BY measured_at ASC, id ASC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var (
		m         Measurement
		extraJson []byte
	)
	if err := row.Scan(
		&m.ID, &m.UserID, &m.Timestamp, &m.Weight, &m.BodyFat, &m.MuscleMass, &extraJson, &m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan measurement: %w", err)
	}
	if len(extraJson) > 0 {
		if err := json.Unmarshal(extraJson, &m.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return &m, nil
}
