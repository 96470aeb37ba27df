package attendance

import (
	"math"
	"time"
)

const dateLayout = "2006-01-02"

// Status is how a coach marked a client for a training day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent:
		return true
	default:
		return false
	}
}

// Record is the attendance of one client on one day. Marking the same day
// again overwrites the previous mark.
type Record struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Date      time.Time `json:"date"`
	Attended  bool      `json:"attended"`
	Notes     string    `json:"notes,omitempty"`
	MarkedBy  int64     `json:"markedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Summary struct {
	Month    string `json:"month"`
	Attended int    `json:"attended"`
	Missed   int    `json:"missed"`
	// Rate is the attended share of marked days, in whole percent
	Rate int `json:"rate"`
}

// Summarize counts the records of a month. A month without records has a rate of 0.
func Summarize(month string, records []Record) Summary {
	summary := Summary{Month: month}
	for _, r := range records {
		if r.Attended {
			summary.Attended++
		} else {
			summary.Missed++
		}
	}
	if total := summary.Attended + summary.Missed; total > 0 {
		summary.Rate = int(math.Round(float64(summary.Attended) / float64(total) * 100))
	}
	return summary
}

type ListResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Summary Summary  `json:"summary"`
}
