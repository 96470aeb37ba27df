package measurements

import (
	"time"
)

// Measurement is an immutable snapshot of a user's body metrics.
// Weight and muscle mass are kept in lbs, body fat in percent.
type Measurement struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"userId"`
	Timestamp  time.Time          `json:"timestamp"`
	Weight     *float64           `json:"weight,omitempty"`
	BodyFat    *float64           `json:"bodyFat,omitempty"`
	MuscleMass *float64           `json:"muscleMass,omitempty"`
	Extra      map[string]float64 `json:"extra,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func (m Measurement) HasAnyValue() bool {
	return m.Weight != nil || m.BodyFat != nil || m.MuscleMass != nil || len(m.Extra) > 0
}

type ListResponse struct {
	Measurements []Measurement `json:"measurements"`
	Total        int           `json:"total"`
}
