package performance

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/2beens/fitcoach/internal/goals"
	"github.com/2beens/fitcoach/internal/measurements"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	// StatusError means behind target, not a failure of the evaluation.
	StatusError Status = "error"
)

// Record is the progress of one goal metric between the two latest measurements.
type Record struct {
	Key             goals.Metric `json:"key"`
	Metric          string       `json:"metric"`
	Value           string       `json:"value"`
	PercentComplete float64      `json:"percentComplete"`
	Status          Status       `json:"status"`
	Delta           float64      `json:"delta"`
	Target          float64      `json:"target"`
}

type Policy struct {
	WarningThreshold float64
	SuccessThreshold float64
}

func DefaultPolicy() Policy {
	return Policy{
		WarningThreshold: 90,
		SuccessThreshold: 100,
	}
}

type metricSpec struct {
	key        goals.Metric
	name       string
	unit       string
	value      func(m measurements.Measurement) *float64
	increasing bool
}

var metricSpecs = []metricSpec{
	{
		key:   goals.MetricWeightLoss,
		name:  "Weight Loss",
		unit:  " lbs",
		value: func(m measurements.Measurement) *float64 { return m.Weight },
	},
	{
		key:        goals.MetricMuscleGain,
		name:       "Muscle Gain",
		unit:       " lbs",
		value:      func(m measurements.Measurement) *float64 { return m.MuscleMass },
		increasing: true,
	},
	{
		key:   goals.MetricBodyFatReduction,
		name:  "Body Fat Reduction",
		unit:  "%",
		value: func(m measurements.Measurement) *float64 { return m.BodyFat },
	},
}

type Evaluator struct {
	policy Policy
}

func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{
		policy: policy,
	}
}

// Evaluate compares the two most recent measurements against the goal of the month of now.
// Missing data never fails the evaluation, it only drops records: the result is empty with
// fewer than two measurements or no goal for the month, and a metric is skipped when its
// target is not set or either measurement lacks the value.
func (e *Evaluator) Evaluate(ms []measurements.Measurement, gs []goals.Goal, now time.Time) []Record {
	records := []Record{}
	if len(ms) < 2 || len(gs) == 0 {
		return records
	}

	sorted := make([]measurements.Measurement, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	latest := sorted[len(sorted)-1]
	previous := sorted[len(sorted)-2]

	goal, ok := CurrentGoal(gs, now)
	if !ok {
		return records
	}

	for _, spec := range metricSpecs {
		target := goal.Target(spec.key)
		if target <= 0 {
			continue
		}
		latestValue, previousValue := spec.value(latest), spec.value(previous)
		if !present(latestValue) || !present(previousValue) {
			continue
		}

		delta := *previousValue - *latestValue
		if spec.increasing {
			delta = *latestValue - *previousValue
		}
		percent := clamp(delta/target*100, 0, 100)

		records = append(records, Record{
			Key:             spec.key,
			Metric:          spec.name,
			Value:           fmt.Sprintf("%.1f / %s%s", delta, formatTarget(target), spec.unit),
			PercentComplete: percent,
			Status:          e.Classify(percent),
			Delta:           delta,
			Target:          target,
		})
	}

	return records
}

func (e *Evaluator) Classify(percentComplete float64) Status {
	switch {
	case percentComplete >= e.policy.SuccessThreshold:
		return StatusSuccess
	case percentComplete >= e.policy.WarningThreshold:
		return StatusWarning
	default:
		return StatusError
	}
}

// CurrentGoal picks the first goal whose month is the calendar month of now.
func CurrentGoal(gs []goals.Goal, now time.Time) (goals.Goal, bool) {
	for _, g := range gs {
		if goals.MatchesMonth(g.Month, now) {
			return g, true
		}
	}
	return goals.Goal{}, false
}

// a zero reading counts as missing
func present(v *float64) bool {
	return v != nil && *v != 0 && !math.IsNaN(*v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func formatTarget(target float64) string {
	return strconv.FormatFloat(target, 'f', -1, 64)
}
