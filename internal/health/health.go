package health

import (
	"math"
	"time"

	"github.com/joescharf/civic/internal/models"
)

// UrgentPriority is the lowest priority counted as urgent.
const UrgentPriority = 4

// BacklogScore represents the computed health of the issue backlog.
type BacklogScore struct {
	Total      int
	Resolution int // 0-40
	Freshness  int // 0-30
	UrgentLoad int // 0-30

	Pending    int
	InProgress int
	Resolved   int
	Urgent     int       // unresolved reports at UrgentPriority or above
	Oldest     time.Time // report date of the oldest unresolved report
}

// Scorer computes health scores for the issue backlog.
type Scorer struct {
	Now func() time.Time
}

// NewScorer returns a new health Scorer.
func NewScorer() *Scorer {
	return &Scorer{Now: time.Now}
}

// Score computes a health score (0-100) for a set of issues.
func (s *Scorer) Score(issues []*models.Issue) *BacklogScore {
	h := &BacklogScore{}
	for _, i := range issues {
		switch i.Status {
		case models.IssueStatusResolved:
			h.Resolved++
			continue
		case models.IssueStatusInProgress:
			h.InProgress++
		default:
			h.Pending++
		}
		if i.Priority >= UrgentPriority {
			h.Urgent++
		}
		if h.Oldest.IsZero() || i.DateReported.Before(h.Oldest) {
			h.Oldest = i.DateReported
		}
	}

	// Resolution (40 pts) - fewer unresolved reports relative to total = better
	h.Resolution = scoreResolution(h.Pending+h.InProgress, len(issues), 40)

	// Freshness (30 pts) - nothing left waiting for long
	if h.Oldest.IsZero() {
		h.Freshness = 30
	} else {
		h.Freshness = scoreAge(s.Now().Sub(h.Oldest), 30)
	}

	// Urgent load (30 pts) - fewer unresolved urgent reports = calmer
	h.UrgentLoad = scoreUrgent(h.Urgent, 30)

	h.Total = h.Resolution + h.Freshness + h.UrgentLoad
	return h
}

// scoreResolution computes points from the share of open reports.
func scoreResolution(open, total, maxPoints int) int {
	if total == 0 {
		return maxPoints // no reports = healthy
	}
	ratio := float64(open) / float64(total)
	return int(math.Round(float64(maxPoints) * (1 - ratio*0.8)))
}

// scoreAge converts how long the oldest report has waited to points.
func scoreAge(age time.Duration, maxPoints int) int {
	days := int(age.Hours() / 24)
	switch {
	case days <= 1:
		return maxPoints
	case days <= 3:
		return int(float64(maxPoints) * 0.9)
	case days <= 7:
		return int(float64(maxPoints) * 0.75)
	case days <= 14:
		return int(float64(maxPoints) * 0.6)
	case days <= 30:
		return int(float64(maxPoints) * 0.4)
	case days <= 90:
		return int(float64(maxPoints) * 0.2)
	default:
		return int(float64(maxPoints) * 0.1)
	}
}

// scoreUrgent penalizes a pile-up of urgent reports.
func scoreUrgent(count, maxPoints int) int {
	switch {
	case count == 0:
		return maxPoints
	case count <= 2:
		return int(float64(maxPoints) * 0.8)
	case count <= 5:
		return int(float64(maxPoints) * 0.6)
	case count <= 10:
		return int(float64(maxPoints) * 0.4)
	case count <= 20:
		return int(float64(maxPoints) * 0.2)
	default:
		return 0
	}
}
