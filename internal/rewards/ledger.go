package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=ledger_mocks_test.go -package=rewards_test

type ledgerRepo interface {
	GetBalance(ctx context.Context, userID int64) (*Balance, error)
	SaveBalance(ctx context.Context, balance *Balance) error
	CommitAccrual(ctx context.Context, accrual *Accrual) error
	CommitClaim(ctx context.Context, balance *Balance, tx *Transaction) error
	CommitClaimResolution(ctx context.Context, balance *Balance, tx *Transaction) error
	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)
	ListPendingClaims(ctx context.Context, updatedBefore time.Time) ([]Transaction, error)
	ListCompletedGoals(ctx context.Context, userID int64) ([]CompletedGoal, error)
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
}

type goalReader interface {
	Get(ctx context.Context, id int64) (*goals.Goal, error)
}

// Ledger tracks VII-FT balances. Every balance mutation runs under the user's lock and is
// stored with a compare-and-swap on the balance version, so a concurrent writer in another
// process makes the operation fail with ErrConcurrentUpdate instead of losing an update.
type Ledger struct {
	repo    ledgerRepo
	goals   goalReader
	policy  RewardPolicy
	locks   *userLocks
	metrics *metrics.Manager

	now          func() time.Time
	newReference func() string
}

func NewLedger(
	repo ledgerRepo,
	goals goalReader,
	policy RewardPolicy,
	metrics *metrics.Manager,
) *Ledger {
	return &Ledger{
		repo:         repo,
		goals:        goals,
		policy:       policy,
		locks:        newUserLocks(),
		metrics:      metrics,
		now:          time.Now,
		newReference: uuid.NewString,
	}
}

// Accrue credits the reward for an achieved goal metric. Accruing the same goal metric
// twice fails with ErrDuplicateAccrual and leaves the balance untouched.
func (l *Ledger) Accrue(
	ctx context.Context,
	goalID int64,
	metric goals.Metric,
	achievedValue, targetValue float64,
) (_ *CompletedGoal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.accrue")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int64("goal.id", goalID),
		attribute.String("goal.metric", string(metric)),
	)

	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}
	amount, err := l.policy.Amount(metric)
	if err != nil {
		return nil, err
	}

	goal, err := l.goals.Get(ctx, goalID)
	if err != nil {
		if errors.Is(err, goals.ErrGoalNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrGoalNotFound, goalID)
		}
		return nil, fmt.Errorf("get goal %d: %w", goalID, err)
	}
	if goal.Status == goals.StatusCancelled {
		return nil, fmt.Errorf("%w: goal %d is cancelled", ErrGoalNotActive, goalID)
	}
	if goal.IsAchieved(metric) {
		return nil, ErrDuplicateAccrual
	}

	unlock := l.locks.Lock(goal.UserID)
	defer unlock()

	balance, err := l.repo.GetBalance(ctx, goal.UserID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	now := l.now()
	updated := *balance
	updated.PendingBalance += amount
	updated.TotalEarned += amount
	updated.UpdatedAt = now
	if err := updated.CheckInvariant(); err != nil {
		return nil, err
	}

	gid := goalID
	accrual := &Accrual{
		Balance: &updated,
		CompletedGoal: &CompletedGoal{
			UserID:        goal.UserID,
			GoalID:        goalID,
			Metric:        metric,
			TargetValue:   targetValue,
			AchievedValue: achievedValue,
			RewardAmount:  amount,
			CompletedAt:   now,
		},
		Transaction: &Transaction{
			UserID:    goal.UserID,
			Type:      TransactionEarned,
			Amount:    amount,
			Timestamp: now,
			Status:    TransactionCompleted,
			GoalID:    &gid,
			UpdatedAt: now,
		},
	}
	if err := l.repo.CommitAccrual(ctx, accrual); err != nil {
		l.countConflict(err)
		return nil, fmt.Errorf("commit accrual: %w", err)
	}

	l.metrics.CounterAccruals.WithLabelValues(string(metric)).Inc()
	l.metrics.CounterTokensAccrued.Add(float64(amount))
	log.Debugf("ledger: user %d accrued %d for goal %d [%s]", goal.UserID, amount, goalID, metric)

	return accrual.CompletedGoal, nil
}

// ConnectWallet sets the user's XRP address. A different address resets the trust line.
func (l *Ledger) ConnectWallet(ctx context.Context, userID int64, address string) (_ *Balance, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.wallet.connect")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	if !ValidXRPAddress(address) {
		return nil, ErrInvalidWalletAddress
	}

	return l.updateBalance(ctx, userID, func(b *Balance) error {
		if b.XRPWalletAddress == address {
			return nil
		}
		b.XRPWalletAddress = address
		b.setTrustLine(TrustLineNone)
		return nil
	})
}

// RequestTrustLine marks the trust line setup as submitted: none -> pending.
func (l *Ledger) RequestTrustLine(ctx context.Context, userID int64) (_ *Balance, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.trustline.request")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return l.updateBalance(ctx, userID, func(b *Balance) error {
		if b.XRPWalletAddress == "" {
			return ErrWalletNotConnected
		}
		return transitionTrustLine(b, TrustLineNone, TrustLinePending)
	})
}

// ConfirmTrustLine activates a pending trust line: pending -> active.
func (l *Ledger) ConfirmTrustLine(ctx context.Context, userID int64) (_ *Balance, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.trustline.confirm")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return l.updateBalance(ctx, userID, func(b *Balance) error {
		return transitionTrustLine(b, TrustLinePending, TrustLineActive)
	})
}

// FailTrustLine resets a pending trust line so it can be requested again: pending -> none.
func (l *Ledger) FailTrustLine(ctx context.Context, userID int64) (_ *Balance, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.trustline.fail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return l.updateBalance(ctx, userID, func(b *Balance) error {
		return transitionTrustLine(b, TrustLinePending, TrustLineNone)
	})
}

// Claim moves the whole pending balance to claimed and records a pending claimed
// transaction with a fresh transfer reference. Ineligible claims fail with
// ErrClaimNotEligible before anything is written.
func (l *Ledger) Claim(ctx context.Context, userID int64) (_ *Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.claim")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	unlock := l.locks.Lock(userID)
	defer unlock()

	balance, err := l.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if err := balance.ClaimEligibility(); err != nil {
		return nil, err
	}

	now := l.now()
	amount := balance.PendingBalance
	updated := *balance
	updated.PendingBalance = 0
	updated.TotalClaimed += amount
	updated.UpdatedAt = now
	if err := updated.CheckInvariant(); err != nil {
		return nil, err
	}

	tx := &Transaction{
		UserID:      userID,
		Type:        TransactionClaimed,
		Amount:      amount,
		Timestamp:   now,
		Status:      TransactionPending,
		Reference:   l.newReference(),
		Destination: balance.XRPWalletAddress,
		UpdatedAt:   now,
	}
	if err := l.repo.CommitClaim(ctx, &updated, tx); err != nil {
		l.countConflict(err)
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	l.metrics.CounterClaims.WithLabelValues(string(TransactionPending)).Inc()
	span.SetAttributes(attribute.String("transfer.reference", tx.Reference))
	log.Debugf("ledger: user %d claimed %d, reference %s", userID, amount, tx.Reference)

	return tx, nil
}

// ConfirmClaim completes a pending claim with the on-ledger transaction hash.
func (l *Ledger) ConfirmClaim(ctx context.Context, reference, txHash string) (_ *Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.claim.confirm")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("transfer.reference", reference))

	if strings.TrimSpace(txHash) == "" {
		return nil, ErrTxHashMissing
	}

	tx, err := l.pendingClaim(ctx, reference)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(tx.UserID)
	defer unlock()

	resolved := *tx
	resolved.Status = TransactionCompleted
	resolved.TxHash = txHash
	resolved.UpdatedAt = l.now()
	if err := l.repo.CommitClaimResolution(ctx, nil, &resolved); err != nil {
		return nil, fmt.Errorf("commit claim confirmation: %w", err)
	}

	l.metrics.CounterClaims.WithLabelValues(string(TransactionCompleted)).Inc()
	return &resolved, nil
}

// FailClaim marks a pending claim as failed and rolls its amount back from claimed
// to pending, in the same storage transaction.
func (l *Ledger) FailClaim(ctx context.Context, reference, reason string) (_ *Transaction, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ledger.claim.fail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("transfer.reference", reference))

	tx, err := l.pendingClaim(ctx, reference)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(tx.UserID)
	defer unlock()

	balance, err := l.repo.GetBalance(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	now := l.now()
	updated := *balance
	updated.TotalClaimed -= tx.Amount
	updated.PendingBalance += tx.Amount
	updated.UpdatedAt = now
	if err := updated.CheckInvariant(); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = ErrTransferFailed.Error()
	}
	resolved := *tx
	resolved.Status = TransactionFailed
	resolved.FailureReason = reason
	resolved.UpdatedAt = now
	if err := l.repo.CommitClaimResolution(ctx, &updated, &resolved); err != nil {
		l.countConflict(err)
		return nil, fmt.Errorf("commit claim rollback: %w", err)
	}

	l.metrics.CounterClaims.WithLabelValues(string(TransactionFailed)).Inc()
	log.Warnf("ledger: claim %s of user %d failed, %d rolled back to pending: %s",
		reference, tx.UserID, tx.Amount, reason)

	return &resolved, nil
}

func (l *Ledger) Balance(ctx context.Context, userID int64) (*Balance, error) {
	return l.repo.GetBalance(ctx, userID)
}

func (l *Ledger) CompletedGoals(ctx context.Context, userID int64) ([]CompletedGoal, error) {
	return l.repo.ListCompletedGoals(ctx, userID)
}

// Transactions returns the user's transactions, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return l.repo.ListTransactions(ctx, userID)
}

// PendingClaims lists claims still waiting for the gateway that were last touched before the given time.
func (l *Ledger) PendingClaims(ctx context.Context, updatedBefore time.Time) ([]Transaction, error) {
	return l.repo.ListPendingClaims(ctx, updatedBefore)
}

func (l *Ledger) pendingClaim(ctx context.Context, reference string) (*Transaction, error) {
	tx, err := l.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Type != TransactionClaimed {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	if tx.Status != TransactionPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrTransactionNotPending, reference, tx.Status)
	}
	return tx, nil
}

func (l *Ledger) updateBalance(ctx context.Context, userID int64, mutate func(b *Balance) error) (*Balance, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	balance, err := l.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	updated := *balance
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	if updated == *balance {
		return balance, nil
	}
	updated.UpdatedAt = l.now()

	if err := l.repo.SaveBalance(ctx, &updated); err != nil {
		l.countConflict(err)
		return nil, fmt.Errorf("save balance: %w", err)
	}
	return &updated, nil
}

func (l *Ledger) countConflict(err error) {
	if errors.Is(err, ErrConcurrentUpdate) {
		l.metrics.CounterLedgerConflicts.Inc()
	}
}

func transitionTrustLine(b *Balance, from, to TrustLineStatus) error {
	if b.TrustLineStatus != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTrustLineTransition, from, to, b.TrustLineStatus)
	}
	b.setTrustLine(to)
	return nil
}
