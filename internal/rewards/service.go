package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/transfer"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=rewards_test

// compensating ledger writes get their own deadline, they must not die with the request
const compensationTimeout = 10 * time.Second

type transferGateway interface {
	SubmitTransfer(ctx context.Context, reference, address string, amount int64) error
	RequestTrustLine(ctx context.Context, userID int64, address string) error
}

// Service runs ledger operations with conflict retries and talks to the token
// transfer gateway. A definite gateway rejection runs the compensating ledger operation
// before the error is returned. When the outcome is unknown (timeouts, dropped connections,
// 5xx) the claim stays pending until the gateway calls back or ResubmitStaleClaims resends it.
type Service struct {
	ledger        *Ledger
	gateway       transferGateway
	retryAttempts int
}

func NewService(ledger *Ledger, gateway transferGateway, retryAttempts int) *Service {
	if retryAttempts <= 0 {
		retryAttempts = DefaultRetryAttempts
	}
	return &Service{
		ledger:        ledger,
		gateway:       gateway,
		retryAttempts: retryAttempts,
	}
}

func (s *Service) Accrue(ctx context.Context, goalID int64, metric goals.Metric, achievedValue, targetValue float64) (*CompletedGoal, error) {
	var completed *CompletedGoal
	err := Retry(ctx, s.retryAttempts, func() (err error) {
		completed, err = s.ledger.Accrue(ctx, goalID, metric, achievedValue, targetValue)
		return err
	})
	return completed, err
}

func (s *Service) ConnectWallet(ctx context.Context, userID int64, address string) (*Balance, error) {
	return s.retryBalance(ctx, func() (*Balance, error) {
		return s.ledger.ConnectWallet(ctx, userID, address)
	})
}

// RequestTrustLine marks the trust line pending and asks the gateway to set it up.
// If the gateway refuses, the trust line goes back to none.
func (s *Service) RequestTrustLine(ctx context.Context, userID int64) (*Balance, error) {
	balance, err := s.retryBalance(ctx, func() (*Balance, error) {
		return s.ledger.RequestTrustLine(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.gateway.RequestTrustLine(ctx, userID, balance.XRPWalletAddress); err != nil {
		log.Errorf("rewards: trust line request for user %d failed: %s", userID, err)
		resetCtx, cancel := compensationContext(ctx)
		defer cancel()
		if _, failErr := s.FailTrustLine(resetCtx, userID); failErr != nil {
			log.Errorf("rewards: reset trust line of user %d: %s", userID, failErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	return balance, nil
}

func (s *Service) ConfirmTrustLine(ctx context.Context, userID int64) (*Balance, error) {
	return s.retryBalance(ctx, func() (*Balance, error) {
		return s.ledger.ConfirmTrustLine(ctx, userID)
	})
}

func (s *Service) FailTrustLine(ctx context.Context, userID int64) (*Balance, error) {
	return s.retryBalance(ctx, func() (*Balance, error) {
		return s.ledger.FailTrustLine(ctx, userID)
	})
}

// Claim moves the pending balance to claimed and submits the transfer. A rejected
// submission fails the claim right away, rolling the amount back to pending, and the
// failed transaction is returned along with an ErrTransferFailed error. If the rollback
// itself fails, ErrClaimRollbackFailed is returned and the claim stays pending.
func (s *Service) Claim(ctx context.Context, userID int64) (*Transaction, error) {
	var tx *Transaction
	if err := Retry(ctx, s.retryAttempts, func() (err error) {
		tx, err = s.ledger.Claim(ctx, userID)
		return err
	}); err != nil {
		return nil, err
	}

	return s.submitClaim(ctx, tx)
}

// ResubmitStaleClaims sends claims that are still pending after olderThan to the gateway
// again. The gateway dedupes transfers by reference, so an executed transfer is not paid twice.
func (s *Service) ResubmitStaleClaims(ctx context.Context, olderThan time.Duration) (resubmitted int, err error) {
	stale, err := s.ledger.PendingClaims(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("list pending claims: %w", err)
	}

	for i := range stale {
		if err := ctx.Err(); err != nil {
			return resubmitted, err
		}
		if _, err := s.submitClaim(ctx, &stale[i]); err != nil {
			log.Errorf("rewards: resubmit transfer %s: %s", stale[i].Reference, err)
			continue
		}
		resubmitted++
	}

	if len(stale) > 0 {
		log.Infof("rewards: resubmitted %d of %d stale claims", resubmitted, len(stale))
	}
	return resubmitted, nil
}

// RunResubmitter resubmits stale claims every interval until ctx is done.
func (s *Service) RunResubmitter(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugln("rewards: resubmitter stopped")
			return
		case <-ticker.C:
		}

		if _, err := s.ResubmitStaleClaims(ctx, olderThan); err != nil && ctx.Err() == nil {
			log.Errorf("rewards: resubmit stale claims: %s", err)
		}
	}
}

// submitClaim hands a pending claim to the gateway. Only a definite rejection fails the
// claim, any other error may come after the gateway already executed the transfer.
func (s *Service) submitClaim(ctx context.Context, tx *Transaction) (*Transaction, error) {
	submitErr := s.gateway.SubmitTransfer(ctx, tx.Reference, tx.Destination, tx.Amount)
	if submitErr == nil {
		return tx, nil
	}
	if !transferRejected(submitErr) {
		log.Warnf("rewards: transfer %s of user %d left pending, outcome unknown: %s", tx.Reference, tx.UserID, submitErr)
		return tx, nil
	}

	log.Errorf("rewards: transfer %s of user %d rejected: %s", tx.Reference, tx.UserID, submitErr)
	rollbackCtx, cancel := compensationContext(ctx)
	defer cancel()

	failed, err := s.FailClaim(rollbackCtx, tx.Reference, submitErr.Error())
	if err != nil {
		return nil, fmt.Errorf("%w: %w, rollback: %w", ErrClaimRollbackFailed, submitErr, err)
	}
	return failed, fmt.Errorf("%w: %w", ErrTransferFailed, submitErr)
}

func (s *Service) ConfirmClaim(ctx context.Context, reference, txHash string) (*Transaction, error) {
	return s.ledger.ConfirmClaim(ctx, reference, txHash)
}

func (s *Service) FailClaim(ctx context.Context, reference, reason string) (*Transaction, error) {
	var tx *Transaction
	err := Retry(ctx, s.retryAttempts, func() (err error) {
		tx, err = s.ledger.FailClaim(ctx, reference, reason)
		return err
	})
	return tx, err
}

func (s *Service) Balance(ctx context.Context, userID int64) (*Balance, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *Service) CompletedGoals(ctx context.Context, userID int64) ([]CompletedGoal, error) {
	return s.ledger.CompletedGoals(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return s.ledger.Transactions(ctx, userID)
}

func (s *Service) retryBalance(ctx context.Context, op func() (*Balance, error)) (*Balance, error) {
	var balance *Balance
	err := Retry(ctx, s.retryAttempts, func() (err error) {
		balance, err = op()
		return err
	})
	if errors.Is(err, ErrConcurrentUpdate) {
		log.Warnf("rewards: giving up after %d conflicting updates", s.retryAttempts)
	}
	return balance, err
}

func transferRejected(err error) bool {
	return errors.Is(err, transfer.ErrRejected) || errors.Is(err, transfer.ErrNotConfigured)
}

func compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}
