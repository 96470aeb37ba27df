package rewards

import (
	"fmt"

	"github.com/2beens/fitcoach/internal/goals"
)

// RewardPolicy holds the flat VII-FT reward per achieved goal metric.
type RewardPolicy struct {
	WeightLoss       int64
	MuscleGain       int64
	BodyFatReduction int64
}

func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		WeightLoss:       10,
		MuscleGain:       15,
		BodyFatReduction: 12,
	}
}

func (p RewardPolicy) Amount(metric goals.Metric) (int64, error) {
	var amount int64
	switch metric {
	case goals.MetricWeightLoss:
		amount = p.WeightLoss
	case goals.MetricMuscleGain:
		amount = p.MuscleGain
	case goals.MetricBodyFatReduction:
		amount = p.BodyFatReduction
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: no reward configured for %q", ErrInvalidMetric, metric)
	}
	return amount, nil
}
