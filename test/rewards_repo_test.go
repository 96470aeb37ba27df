package test

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/rewards"
	"github.com/2beens/fitcoach/internal/telemetry/metrics"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) insertUserWithGoal(ctx context.Context) (userID, goalID int64) {
	t := s.T()
	now := time.Now()

	require.NoError(t, s.DB.QueryRowContext(
		ctx,
		`INSERT INTO app_user (email, name, role, password_hash, created_at)
			VALUES ($1, $2, 'client', 'x', $3) RETURNING id`,
		gofakeit.Email(), gofakeit.Name(), now,
	).Scan(&userID))

	require.NoError(t, s.DB.QueryRowContext(
		ctx,
		`INSERT INTO goal (user_id, month, weight_loss, muscle_gain, body_fat_reduction, status, created_at, updated_at)
			VALUES ($1, $2, 5, 2, 1, 'in_progress', $3, $3) RETURNING id`,
		userID, goals.CurrentMonth(now), now,
	).Scan(&goalID))

	return userID, goalID
}

func (s *IntegrationTestSuite) TestRewardsRepo() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := rewards.NewRepo(s.pgPool)
	ledger := rewards.NewLedger(repo, goals.NewRepo(s.pgPool), rewards.DefaultRewardPolicy(), metrics.NewTestManager())

	s.Run("balance defaults", func() {
		t := s.T()
		userID, _ := s.insertUserWithGoal(ctx)
		balance, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Zero(t, balance.Version)
		assert.Zero(t, balance.TotalEarned)
		assert.Equal(t, rewards.TrustLineNone, balance.TrustLineStatus)
	})

	s.Run("stale version loses", func() {
		t := s.T()
		userID, _ := s.insertUserWithGoal(ctx)

		first, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		stale := *first

		first.XRPWalletAddress = testWalletAddress
		require.NoError(t, repo.SaveBalance(ctx, first))
		assert.Equal(t, int64(1), first.Version)

		stale.XRPWalletAddress = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
		assert.ErrorIs(t, repo.SaveBalance(ctx, &stale), rewards.ErrConcurrentUpdate)

		stored, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, testWalletAddress, stored.XRPWalletAddress)
	})

	s.Run("accrual stored once", func() {
		t := s.T()
		userID, goalID := s.insertUserWithGoal(ctx)

		cg, err := ledger.Accrue(ctx, goalID, goals.MetricWeightLoss, 5.5, 5)
		require.NoError(t, err)
		assert.NotZero(t, cg.ID)
		assert.Equal(t, userID, cg.UserID)

		_, err = ledger.Accrue(ctx, goalID, goals.MetricWeightLoss, 6, 5)
		assert.ErrorIs(t, err, rewards.ErrDuplicateAccrual)

		goal, err := goals.NewRepo(s.pgPool).Get(ctx, goalID)
		require.NoError(t, err)
		assert.True(t, goal.Achieved[goals.MetricWeightLoss])

		completed, err := repo.ListCompletedGoals(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, completed, 1)

		earned, pending, claimed := s.storedBalance(ctx, t, userID)
		assert.Equal(t, int64(10), earned)
		assert.Equal(t, int64(10), pending)
		assert.Zero(t, claimed)
	})

	s.Run("concurrent accruals keep the invariant", func() {
		t := s.T()
		userID, goalID := s.insertUserWithGoal(ctx)

		metricsToAccrue := []goals.Metric{goals.MetricWeightLoss, goals.MetricMuscleGain, goals.MetricBodyFatReduction}
		var wg sync.WaitGroup
		errs := make([]error, len(metricsToAccrue)*2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := rewards.Retry(ctx, 5, func() error {
					_, err := ledger.Accrue(ctx, goalID, metricsToAccrue[i%len(metricsToAccrue)], 10, 1)
					return err
				})
				errs[i] = err
			}(i)
		}
		wg.Wait()

		duplicates := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, rewards.ErrDuplicateAccrual)
				duplicates++
			}
		}
		assert.Equal(t, len(metricsToAccrue), duplicates)

		earned, pending, claimed := s.storedBalance(ctx, t, userID)
		assert.Equal(t, int64(10+15+12), earned)
		assert.Equal(t, earned, pending+claimed)

		txs, err := repo.ListTransactions(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, txs, len(metricsToAccrue))
	})

	s.Run("accrual during in-flight claim survives its rollback", func() {
		t := s.T()
		userID, goalID := s.insertUserWithGoal(ctx)

		// a second ledger has its own in-process locks, like a second service instance
		otherLedger := rewards.NewLedger(repo, goals.NewRepo(s.pgPool), rewards.DefaultRewardPolicy(), metrics.NewTestManager())

		_, err := ledger.Accrue(ctx, goalID, goals.MetricWeightLoss, 5, 5)
		require.NoError(t, err)
		_, err = ledger.ConnectWallet(ctx, userID, testWalletAddress)
		require.NoError(t, err)
		_, err = ledger.RequestTrustLine(ctx, userID)
		require.NoError(t, err)
		_, err = ledger.ConfirmTrustLine(ctx, userID)
		require.NoError(t, err)

		tx, err := ledger.Claim(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, int64(10), tx.Amount)

		pendingClaims, err := repo.ListPendingClaims(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		var listed bool
		for _, c := range pendingClaims {
			listed = listed || c.Reference == tx.Reference
		}
		assert.True(t, listed, "claim in flight must be listed as pending")

		var wg sync.WaitGroup
		var accrueErr, failErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			accrueErr = rewards.Retry(ctx, 10, func() error {
				_, err := otherLedger.Accrue(ctx, goalID, goals.MetricMuscleGain, 2, 2)
				return err
			})
		}()
		go func() {
			defer wg.Done()
			failErr = rewards.Retry(ctx, 10, func() error {
				_, err := ledger.FailClaim(ctx, tx.Reference, "gateway rejected")
				return err
			})
		}()
		wg.Wait()
		require.NoError(t, accrueErr)
		require.NoError(t, failErr)

		earned, pending, claimed := s.storedBalance(ctx, t, userID)
		assert.Equal(t, int64(25), earned)
		assert.Equal(t, int64(25), pending)
		assert.Zero(t, claimed)

		pendingClaims, err = repo.ListPendingClaims(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		for _, c := range pendingClaims {
			assert.NotEqual(t, tx.Reference, c.Reference)
		}
	})
}
