package test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/2beens/fitcoach/internal/evaluation"
	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/measurements"
	"github.com/2beens/fitcoach/internal/performance"
	"github.com/2beens/fitcoach/internal/rewards"
	"github.com/2beens/fitcoach/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWalletAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func ptr(v float64) *float64 { return &v }

// progressingClient registers a client whose current goal has a reached weight loss target
// (5 of 5 lbs) and a missed muscle gain target (1 of 2 lbs).
func (s *IntegrationTestSuite) progressingClient(ctx context.Context, t *testing.T) (users.User, string, goals.Goal) {
	user, token := s.registerClient(ctx, t)
	now := time.Now()

	var goal goals.Goal
	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/goals", token, goals.AddGoalRequest{
		Month:      goals.CurrentMonth(now),
		WeightLoss: 5,
		MuscleGain: 2,
	}), http.StatusCreated, &goal)
	require.Equal(t, goals.StatusInProgress, goal.Status)

	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/measurements", token, measurements.AddMeasurementRequest{
		Timestamp:  now.Add(-48 * time.Hour),
		Weight:     ptr(200),
		MuscleMass: ptr(100),
	}), http.StatusCreated, nil)
	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/measurements", token, measurements.AddMeasurementRequest{
		Timestamp:  now.Add(-24 * time.Hour),
		Weight:     ptr(195),
		MuscleMass: ptr(101),
	}), http.StatusCreated, nil)

	return user, token, goal
}

func (s *IntegrationTestSuite) evaluate(ctx context.Context, t *testing.T, adminToken string, userID int64) evaluation.Result {
	var result evaluation.Result
	path := fmt.Sprintf("/api/admin/users/%d/goals/evaluate", userID)
	s.do(t, s.newRequest(ctx, t, http.MethodPost, path, adminToken, nil), http.StatusOK, &result)
	return result
}

// claimableClient goes through accrual, wallet connection and trust line setup.
func (s *IntegrationTestSuite) claimableClient(ctx context.Context, t *testing.T) (users.User, string) {
	adminToken := s.loginAdmin(ctx, t)
	user, token, _ := s.progressingClient(ctx, t)

	result := s.evaluate(ctx, t, adminToken, user.ID)
	require.Len(t, result.Accrued, 1)

	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/wallet", token, rewards.ConnectWalletRequest{
		Address: testWalletAddress,
	}), http.StatusOK, nil)
	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/wallet/trustline", token, nil), http.StatusAccepted, nil)

	var balance rewards.Balance
	s.gatewayCallback(ctx, t, fmt.Sprintf("/api/viift/trustline/%d/confirm", user.ID), nil, http.StatusOK, &balance)
	require.Equal(t, rewards.TrustLineActive, balance.TrustLineStatus)

	return user, token
}

func (s *IntegrationTestSuite) storedBalance(ctx context.Context, t *testing.T, userID int64) (earned, pending, claimed int64) {
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT total_earned, pending_balance, total_claimed FROM viift_balance WHERE user_id = $1`,
		userID,
	).Scan(&earned, &pending, &claimed)
	require.NoError(t, err)
	return earned, pending, claimed
}

func (s *IntegrationTestSuite) TestGoalEvaluation() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adminToken := s.loginAdmin(ctx, t)
	user, token, goal := s.progressingClient(ctx, t)

	var perf performance.Response
	s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/performance", token, nil), http.StatusOK, &perf)
	require.Len(t, perf.Records, 2)
	assert.Equal(t, "Weight Loss", perf.Records[0].Metric)
	assert.Equal(t, "5.0 / 5 lbs", perf.Records[0].Value)
	assert.Equal(t, performance.StatusSuccess, perf.Records[0].Status)
	assert.Equal(t, "Muscle Gain", perf.Records[1].Metric)
	assert.Equal(t, performance.StatusError, perf.Records[1].Status)
	assert.InDelta(t, 50.0, perf.Records[1].PercentComplete, 0.001)

	result := s.evaluate(ctx, t, adminToken, user.ID)
	assert.Equal(t, goal.ID, result.GoalID)
	require.Len(t, result.Accrued, 1)
	assert.Equal(t, goals.MetricWeightLoss, result.Accrued[0].Metric)
	assert.Equal(t, int64(10), result.Accrued[0].RewardAmount)
	assert.False(t, result.GoalCompleted)

	// evaluating again must not pay the same metric twice
	result = s.evaluate(ctx, t, adminToken, user.ID)
	assert.Empty(t, result.Accrued)

	var balance rewards.Balance
	s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/viift/balance", token, nil), http.StatusOK, &balance)
	assert.Equal(t, int64(10), balance.TotalEarned)
	assert.Equal(t, int64(10), balance.PendingBalance)
	assert.Zero(t, balance.TotalClaimed)

	var completed rewards.CompletedGoalsResponse
	s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/viift/completed-goals", token, nil), http.StatusOK, &completed)
	require.Equal(t, 1, completed.Total)
	assert.Equal(t, goal.ID, completed.CompletedGoals[0].GoalID)

	// muscle gain reached as well, the goal completes
	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/measurements", token, measurements.AddMeasurementRequest{
		Timestamp:  time.Now().Add(-time.Hour),
		Weight:     ptr(195),
		MuscleMass: ptr(103),
	}), http.StatusCreated, nil)

	result = s.evaluate(ctx, t, adminToken, user.ID)
	require.Len(t, result.Accrued, 1)
	assert.Equal(t, goals.MetricMuscleGain, result.Accrued[0].Metric)
	assert.True(t, result.GoalCompleted)

	var goalsResp goals.ListResponse
	s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/goals", token, nil), http.StatusOK, &goalsResp)
	require.Equal(t, 1, goalsResp.Total)
	assert.Equal(t, goals.StatusCompleted, goalsResp.Goals[0].Status)
	assert.True(t, goalsResp.Goals[0].Achieved[goals.MetricWeightLoss])
	assert.True(t, goalsResp.Goals[0].Achieved[goals.MetricMuscleGain])

	earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
	assert.Equal(t, int64(25), earned)
	assert.Equal(t, earned, pending+claimed)
}

func (s *IntegrationTestSuite) TestClaimFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("not eligible without wallet", func(t *testing.T) {
		adminToken := s.loginAdmin(ctx, t)
		user, token, _ := s.progressingClient(ctx, t)
		s.evaluate(ctx, t, adminToken, user.ID)

		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusConflict, nil)

		earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
		assert.Equal(t, int64(10), earned)
		assert.Equal(t, int64(10), pending)
		assert.Zero(t, claimed)
	})

	t.Run("invalid wallet address", func(t *testing.T) {
		_, token := s.registerClient(ctx, t)
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/wallet", token, rewards.ConnectWalletRequest{
			Address: "not-an-xrp-address",
		}), http.StatusBadRequest, nil)
	})

	t.Run("gateway callback needs the secret", func(t *testing.T) {
		req := s.newRequest(ctx, t, http.MethodPost, "/api/viift/trustline/1/confirm", "", nil)
		s.do(t, req, http.StatusUnauthorized, nil)
	})

	t.Run("claim confirmed", func(t *testing.T) {
		user, token := s.claimableClient(ctx, t)

		var claimTx rewards.Transaction
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusAccepted, &claimTx)
		assert.Equal(t, rewards.TransactionClaimed, claimTx.Type)
		assert.Equal(t, rewards.TransactionPending, claimTx.Status)
		assert.Equal(t, int64(10), claimTx.Amount)
		require.NotEmpty(t, claimTx.Reference)

		submitted, ok := s.gateway.lastTransfer()
		require.True(t, ok)
		assert.Equal(t, claimTx.Reference, submitted.Reference)
		assert.Equal(t, testWalletAddress, submitted.Address)
		assert.Equal(t, int64(10), submitted.Amount)

		earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
		assert.Equal(t, int64(10), earned)
		assert.Zero(t, pending)
		assert.Equal(t, int64(10), claimed)

		// nothing left to claim
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusConflict, nil)

		var confirmed rewards.Transaction
		s.gatewayCallback(ctx, t, "/api/viift/transfers/"+claimTx.Reference+"/confirm",
			rewards.ConfirmTransferRequest{TxHash: "E3FE6EA3D48F0C2B639448020EA4F03D4F4F8FFDB243A852A0F59177921B4879"},
			http.StatusOK, &confirmed)
		assert.Equal(t, rewards.TransactionCompleted, confirmed.Status)

		// a resolved transfer cannot be resolved again
		s.gatewayCallback(ctx, t, "/api/viift/transfers/"+claimTx.Reference+"/fail",
			rewards.FailTransferRequest{Reason: "late"}, http.StatusConflict, nil)

		var txs rewards.TransactionsResponse
		s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/viift/transactions", token, nil), http.StatusOK, &txs)
		require.Equal(t, 2, txs.Total)
		assert.Equal(t, rewards.TransactionClaimed, txs.Transactions[0].Type)
		assert.Equal(t, rewards.TransactionCompleted, txs.Transactions[0].Status)
		assert.Equal(t, rewards.TransactionEarned, txs.Transactions[1].Type)
	})

	t.Run("claim failed by gateway callback", func(t *testing.T) {
		user, token := s.claimableClient(ctx, t)

		var claimTx rewards.Transaction
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusAccepted, &claimTx)

		var failed rewards.Transaction
		s.gatewayCallback(ctx, t, "/api/viift/transfers/"+claimTx.Reference+"/fail",
			rewards.FailTransferRequest{Reason: "destination frozen"}, http.StatusOK, &failed)
		assert.Equal(t, rewards.TransactionFailed, failed.Status)
		assert.Equal(t, "destination frozen", failed.FailureReason)

		earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
		assert.Equal(t, int64(10), earned)
		assert.Equal(t, int64(10), pending)
		assert.Zero(t, claimed)
	})

	t.Run("claim rejected on submit", func(t *testing.T) {
		user, token := s.claimableClient(ctx, t)

		s.gateway.failNextRequest(http.StatusUnprocessableEntity)
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusBadGateway, nil)

		earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
		assert.Equal(t, int64(10), earned)
		assert.Equal(t, int64(10), pending)
		assert.Zero(t, claimed)

		var txs rewards.TransactionsResponse
		s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/viift/transactions", token, nil), http.StatusOK, &txs)
		require.Equal(t, 2, txs.Total)
		assert.Equal(t, rewards.TransactionFailed, txs.Transactions[0].Status)
		assert.NotEmpty(t, txs.Transactions[0].FailureReason)
	})

	t.Run("claim outcome unknown stays pending until callback", func(t *testing.T) {
		user, token := s.claimableClient(ctx, t)

		s.gateway.failNextRequest(http.StatusServiceUnavailable)
		var claimTx rewards.Transaction
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusAccepted, &claimTx)
		assert.Equal(t, rewards.TransactionPending, claimTx.Status)

		earned, pending, claimed := s.storedBalance(ctx, t, user.ID)
		assert.Equal(t, int64(10), earned)
		assert.Zero(t, pending)
		assert.Equal(t, int64(10), claimed)

		// a second claim must not pay the same tokens twice
		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/viift/claim", token, nil), http.StatusConflict, nil)

		var confirmed rewards.Transaction
		s.gatewayCallback(ctx, t, "/api/viift/transfers/"+claimTx.Reference+"/confirm",
			rewards.ConfirmTransferRequest{TxHash: "9C4F0D9B4E2A7F1A3F5D6B7C8E9A0B1C2D3E4F5A6B7C8D9E0F1A2B3C4D5E6F70"}, http.StatusOK, &confirmed)
		assert.Equal(t, rewards.TransactionCompleted, confirmed.Status)
	})
}
