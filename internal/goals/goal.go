package goals

import (
	"errors"
	"time"
)

type Metric string

const (
	MetricWeightLoss       Metric = "weightLoss"
	MetricMuscleGain       Metric = "muscleGain"
	MetricBodyFatReduction Metric = "bodyFatReduction"
)

// Metrics lists the goal metrics in evaluation order.
var Metrics = []Metric{MetricWeightLoss, MetricMuscleGain, MetricBodyFatReduction}

func (m Metric) Valid() bool {
	switch m {
	case MetricWeightLoss, MetricMuscleGain, MetricBodyFatReduction:
		return true
	}
	return false
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var ErrInvalidStatusTransition = errors.New("invalid goal status transition")

// CanTransition reports whether a goal may move from one status to another.
// Only in-progress goals change status, completed and cancelled are final.
func CanTransition(from, to Status) bool {
	return from == StatusInProgress && (to == StatusCompleted || to == StatusCancelled)
}

// Goal is a per-user, per-month set of target deltas. Targets are magnitudes:
// lbs for weight loss and muscle gain, percentage points for body fat reduction.
type Goal struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"userId"`
	Month            string          `json:"month"`
	WeightLoss       float64         `json:"weightLoss,omitempty"`
	MuscleGain       float64         `json:"muscleGain,omitempty"`
	BodyFatReduction float64         `json:"bodyFatReduction,omitempty"`
	Status           Status          `json:"status"`
	Achieved         map[Metric]bool `json:"achieved"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (g Goal) Target(m Metric) float64 {
	switch m {
	case MetricWeightLoss:
		return g.WeightLoss
	case MetricMuscleGain:
		return g.MuscleGain
	case MetricBodyFatReduction:
		return g.BodyFatReduction
	}
	return 0
}

// TargetedMetrics returns the metrics with a positive target, in evaluation order.
func (g Goal) TargetedMetrics() []Metric {
	var targeted []Metric
	for _, m := range Metrics {
		if g.Target(m) > 0 {
			targeted = append(targeted, m)
		}
	}
	return targeted
}

func (g Goal) IsAchieved(m Metric) bool {
	return g.Achieved[m]
}

// AllTargetsAchieved is false for a goal without any target.
func (g Goal) AllTargetsAchieved() bool {
	targeted := g.TargetedMetrics()
	if len(targeted) == 0 {
		return false
	}
	for _, m := range targeted {
		if !g.IsAchieved(m) {
			return false
		}
	}
	return true
}

type ListResponse struct {
	Goals []Goal `json:"goals"`
	Total int    `json:"total"`
}
