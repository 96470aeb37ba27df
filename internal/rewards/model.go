package rewards

import (
	"fmt"
	"regexp"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
)

type TransactionType string

const (
	TransactionEarned  TransactionType = "earned"
	TransactionClaimed TransactionType = "claimed"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

type TrustLineStatus string

const (
	TrustLineNone    TrustLineStatus = "none"
	TrustLinePending TrustLineStatus = "pending"
	TrustLineActive  TrustLineStatus = "active"
)

// classic address: "r" followed by base58 (XRP alphabet, no 0, O, I, l), 25 to 35 chars in total
var xrpAddressRegex = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

func ValidXRPAddress(address string) bool {
	return xrpAddressRegex.MatchString(address)
}

// Balance is the per-user ledger head. TotalEarned always equals PendingBalance + TotalClaimed.
type Balance struct {
	UserID           int64           `json:"userId"`
	TotalEarned      int64           `json:"totalEarned"`
	PendingBalance   int64           `json:"pendingBalance"`
	TotalClaimed     int64           `json:"totalClaimed"`
	XRPWalletAddress string          `json:"xrpWalletAddress,omitempty"`
	TrustLineSetup   bool            `json:"trustLineSetup"`
	TrustLineStatus  TrustLineStatus `json:"trustLineStatus"`
	Version          int64           `json:"-"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func NewBalance(userID int64) *Balance {
	return &Balance{
		UserID:          userID,
		TrustLineStatus: TrustLineNone,
	}
}

func (b *Balance) CheckInvariant() error {
	if b.TotalEarned != b.PendingBalance+b.TotalClaimed {
		return fmt.Errorf("%w: earned %d != pending %d + claimed %d",
			ErrBalanceInvariant, b.TotalEarned, b.PendingBalance, b.TotalClaimed)
	}
	if b.PendingBalance < 0 || b.TotalClaimed < 0 {
		return fmt.Errorf("%w: negative pool (pending %d, claimed %d)",
			ErrBalanceInvariant, b.PendingBalance, b.TotalClaimed)
	}
	return nil
}

// ClaimEligibility returns nil if the whole pending balance can be claimed.
func (b *Balance) ClaimEligibility() error {
	switch {
	case b.XRPWalletAddress == "":
		return fmt.Errorf("%w: no wallet connected", ErrClaimNotEligible)
	case b.TrustLineStatus != TrustLineActive:
		return fmt.Errorf("%w: trust line not active", ErrClaimNotEligible)
	case b.PendingBalance <= 0:
		return fmt.Errorf("%w: nothing to claim", ErrClaimNotEligible)
	}
	return nil
}

func (b *Balance) setTrustLine(status TrustLineStatus) {
	b.TrustLineStatus = status
	b.TrustLineSetup = status == TrustLineActive
}

// CompletedGoal is the immutable record of an accrued goal metric.
type CompletedGoal struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"userId"`
	GoalID        int64        `json:"goalId"`
	Metric        goals.Metric `json:"metric"`
	TargetValue   float64      `json:"targetValue"`
	AchievedValue float64      `json:"achievedValue"`
	RewardAmount  int64        `json:"rewardAmount"`
	CompletedAt   time.Time    `json:"completedAt"`
}

// Transaction is an append-only ledger entry. Only claimed transactions change after
// creation, once, from pending to completed or failed.
type Transaction struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"userId"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        TransactionStatus `json:"status"`
	TxHash        string            `json:"txHash,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	Destination   string            `json:"destination,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
	GoalID        *int64            `json:"goalId,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Accrual groups the writes of a single reward accrual, stored in one transaction.
type Accrual struct {
	Balance       *Balance
	CompletedGoal *CompletedGoal
	Transaction   *Transaction
}
