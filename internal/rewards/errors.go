package rewards

import "errors"

var (
	ErrDuplicateAccrual           = errors.New("reward already accrued for this goal metric")
	ErrClaimNotEligible           = errors.New("claim not eligible")
	ErrTransferFailed             = errors.New("token transfer failed")
	ErrClaimRollbackFailed        = errors.New("transfer rejected, claim rollback failed")
	ErrTxHashMissing              = errors.New("transaction hash missing")
	ErrConcurrentUpdate           = errors.New("concurrent balance update")
	ErrInvalidMetric              = errors.New("invalid goal metric")
	ErrGoalNotFound               = errors.New("goal not found")
	ErrGoalNotActive              = errors.New("goal is not active")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrTransactionNotPending      = errors.New("transaction is not pending")
	ErrInvalidWalletAddress       = errors.New("invalid XRP wallet address")
	ErrWalletNotConnected         = errors.New("wallet not connected")
	ErrInvalidTrustLineTransition = errors.New("invalid trust line transition")
	ErrBalanceInvariant           = errors.New("balance invariant violated")
)
