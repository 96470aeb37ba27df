package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	balanceColumns     = `user_id, total_earned, pending_balance, total_claimed, xrp_wallet_address, trust_line_setup, trust_line_status, version, updated_at`
	transactionColumns = `id, user_id, type, amount, created_at, status, tx_hash, reference, destination, failure_reason, goal_id, updated_at`
)

// execer is satisfied by both the pool and an open pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// GetBalance returns the user's balance. Users without ledger activity get an empty
// balance with version 0, which is inserted on first save.
func (r *Repo) GetBalance(ctx context.Context, userID int64) (_ *Balance, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.balance.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var (
		b         Balance
		wallet    *string
		trustLine string
	)
	if err := r.db.QueryRow(
		ctx,
		`SELECT `+balanceColumns+` FROM viift_balance WHERE user_id = $1;`,
		userID,
	).Scan(
		&b.UserID, &b.TotalEarned, &b.PendingBalance, &b.TotalClaimed,
		&wallet, &b.TrustLineSetup, &trustLine, &b.Version, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewBalance(userID), nil
		}
		return nil, err
	}
	if wallet != nil {
		b.XRPWalletAddress = *wallet
	}
	b.TrustLineStatus = TrustLineStatus(trustLine)

	return &b, nil
}

// SaveBalance stores the balance if nobody else changed it since it was read.
// On success the balance version is bumped, otherwise ErrConcurrentUpdate is returned.
func (r *Repo) SaveBalance(ctx context.Context, balance *Balance) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.balance.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", balance.UserID))

	return saveBalance(ctx, r.db, balance)
}

// CommitAccrual marks the goal metric achieved and stores the balance, the completed goal
// and the earned transaction, all or nothing.
func (r *Repo) CommitAccrual(ctx context.Context, accrual *Accrual) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.accrual.commit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	cg := accrual.CompletedGoal
	span.SetAttributes(
		attribute.Int64("user.id", cg.UserID),
		attribute.Int64("goal.id", cg.GoalID),
		attribute.String("goal.metric", string(cg.Metric)),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	tag, err := tx.Exec(
		ctx,
		`UPDATE goal
			SET achieved = achieved || jsonb_build_object($2::text, true), updated_at = $3
			WHERE id = $1 AND COALESCE((achieved->>$2)::boolean, false) = false;`,
		cg.GoalID, string(cg.Metric), cg.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("mark goal achieved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateAccrual
	}

	if err = saveBalance(ctx, tx, accrual.Balance); err != nil {
		return err
	}

	if err = tx.QueryRow(
		ctx,
		`INSERT INTO viift_completed_goal
				(user_id, goal_id, metric, target_value, achieved_value, reward_amount, completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		cg.UserID, cg.GoalID, string(cg.Metric), cg.TargetValue, cg.AchievedValue, cg.RewardAmount, cg.CompletedAt,
	).Scan(&cg.ID); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateAccrual
		}
		return fmt.Errorf("insert completed goal: %w", err)
	}

	if err = insertTransaction(ctx, tx, accrual.Transaction); err != nil {
		return err
	}

	return nil
}

// CommitClaim stores the drained balance together with the pending claimed transaction.
func (r *Repo) CommitClaim(ctx context.Context, balance *Balance, transaction *Transaction) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.claim.commit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", balance.UserID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	if err = saveBalance(ctx, tx, balance); err != nil {
		return err
	}
	return insertTransaction(ctx, tx, transaction)
}

// CommitClaimResolution moves a pending claimed transaction to its final status.
// The balance is optional: a failed claim also stores the rolled back balance.
func (r *Repo) CommitClaimResolution(ctx context.Context, balance *Balance, transaction *Transaction) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.claim.resolve")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("transaction.id", transaction.ID),
		attribute.String("transaction.status", string(transaction.Status)),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	tag, err := tx.Exec(
		ctx,
		`UPDATE viift_transaction
			SET status = $1, tx_hash = $2, failure_reason = $3, updated_at = $4
			WHERE id = $5 AND status = $6;`,
		transaction.Status, nullIfEmpty(transaction.TxHash), nullIfEmpty(transaction.FailureReason),
		transaction.UpdatedAt, transaction.ID, TransactionPending,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotPending
	}

	if balance != nil {
		if err = saveBalance(ctx, tx, balance); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetTransactionByReference(ctx context.Context, reference string) (_ *Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.transaction.getbyref")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("transfer.reference", reference))

	t, err := scanTransaction(r.db.QueryRow(
		ctx,
		`SELECT `+transactionColumns+` FROM viift_transaction WHERE reference = $1;`,
		reference,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
		}
		return nil, err
	}
	return t, nil
}

// ListPendingClaims returns claims still waiting for the gateway, oldest first.
func (r *Repo) ListPendingClaims(ctx context.Context, updatedBefore time.Time) (_ []Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.claims.pending")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT `+transactionColumns+` FROM viift_transaction
			WHERE type = $1 AND status = $2 AND updated_at < $3
			ORDER BY updated_at ASC, id ASC;`,
		TransactionClaimed, TransactionPending, updatedBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *t)
	}

	return claims, rows.Err()
}

func (r *Repo) ListCompletedGoals(ctx context.Context, userID int64) (_ []CompletedGoal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.completedgoals.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, goal_id, metric, target_value, achieved_value, reward_amount, completed_at
			FROM viift_completed_goal WHERE user_id = $1 ORDER BY completed_at DESC, id DESC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := []CompletedGoal{}
	for rows.Next() {
		var (
			cg     CompletedGoal
			metric string
		)
		if err := rows.Scan(
			&cg.ID, &cg.UserID, &cg.GoalID, &metric,
			&cg.TargetValue, &cg.AchievedValue, &cg.RewardAmount, &cg.CompletedAt,
		); err != nil {
			return nil, err
		}
		cg.Metric = goals.Metric(metric)
		completed = append(completed, cg)
	}

	return completed, rows.Err()
}

// ListTransactions returns the user's transactions, newest first.
func (r *Repo) ListTransactions(ctx context.Context, userID int64) (_ []Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.rewards.transactions.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+transactionColumns+` FROM viift_transaction WHERE user_id = $1 ORDER BY created_at DESC, id DESC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}

	return transactions, rows.Err()
}

func saveBalance(ctx context.Context, db execer, b *Balance) error {
	if err := b.CheckInvariant(); err != nil {
		return err
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if b.Version == 0 {
		tag, err = db.Exec(
			ctx,
			`INSERT INTO viift_balance (`+balanceColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
				ON CONFLICT (user_id) DO NOTHING;`,
			b.UserID, b.TotalEarned, b.PendingBalance, b.TotalClaimed,
			nullIfEmpty(b.XRPWalletAddress), b.TrustLineSetup, b.TrustLineStatus, b.UpdatedAt,
		)
	} else {
		tag, err = db.Exec(
			ctx,
			`UPDATE viift_balance
				SET total_earned = $1, pending_balance = $2, total_claimed = $3,
					xrp_wallet_address = $4, trust_line_setup = $5, trust_line_status = $6,
					version = version + 1, updated_at = $7
				WHERE user_id = $8 AND version = $9;`,
			b.TotalEarned, b.PendingBalance, b.TotalClaimed,
			nullIfEmpty(b.XRPWalletAddress), b.TrustLineSetup, b.TrustLineStatus, b.UpdatedAt,
			b.UserID, b.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}

	b.Version++
	return nil
}

func insertTransaction(ctx context.Context, db execer, t *Transaction) error {
	if err := db.QueryRow(
		ctx,
		`INSERT INTO viift_transaction
				(user_id, type, amount, created_at, status, tx_hash, reference, destination, failure_reason, goal_id, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id;`,
		t.UserID, t.Type, t.Amount, t.Timestamp, t.Status,
		nullIfEmpty(t.TxHash), nullIfEmpty(t.Reference), nullIfEmpty(t.Destination), nullIfEmpty(t.FailureReason),
		t.GoalID, t.UpdatedAt,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t                                       Transaction
		txType, status                          string
		txHash, reference, destination, failure *string
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &txType, &t.Amount, &t.Timestamp, &status,
		&txHash, &reference, &destination, &failure, &t.GoalID, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Type = TransactionType(txType)
	t.Status = TransactionStatus(status)
	t.TxHash = deref(txHash)
	t.Reference = deref(reference)
	t.Destination = deref(destination)
	t.FailureReason = deref(failure)
	return &t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
