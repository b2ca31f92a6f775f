package health

import (
	"time"

	"github.com/sprouthq/plantcare/internal/models"
)

// CareScore represents the computed care health of a plant.
type CareScore struct {
	Total                int
	ScheduleCompleteness int // 0-25
	AttentionRecency     int // 0-25
	OpenProblems         int // 0-30
	DiagnosisOutcomes    int // 0-20
}

// Scorer computes care scores for plants.
type Scorer struct{}

// NewScorer returns a new care Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes a care score (0-100) for a plant from its schedule and
// diagnosis history.
func (s *Scorer) Score(plant *models.Plant, sessions []*models.DiagnosisSession) *CareScore {
	c := &CareScore{}

	// Schedule completeness (25 pts) - every field filled = full points
	c.ScheduleCompleteness = scoreSchedule(plant.CareSchedule, 25)

	// Attention recency (25 pts) - recently looked after = more points
	c.AttentionRecency = scoreRecency(lastActivity(plant, sessions), 25)

	// Open problems (30 pts) - fewer unresolved diagnoses = better
	c.OpenProblems = scoreOpenProblems(sessions, 30)

	// Diagnosis outcomes (20 pts) - abandoned diagnoses drag the score down
	c.DiagnosisOutcomes = scoreOutcomes(sessions, 20)

	c.Total = c.ScheduleCompleteness + c.AttentionRecency + c.OpenProblems + c.DiagnosisOutcomes
	return c
}

// scoreSchedule awards points per populated care schedule field.
func scoreSchedule(cs models.CareSchedule, maxPoints int) int {
	fields := []string{cs.Light, cs.Water, cs.Humidity, cs.Temperature, cs.CareInstructions}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return maxPoints * filled / len(fields)
}

// lastActivity returns the most recent touch across the plant and its sessions.
func lastActivity(plant *models.Plant, sessions []*models.DiagnosisSession) time.Time {
	last := plant.UpdatedAt
	for _, sess := range sessions {
		if sess.UpdatedAt.After(last) {
			last = sess.UpdatedAt
		}
	}
	return last
}

// scoreRecency converts time since last activity to points.
func scoreRecency(t time.Time, maxPoints int) int {
	if t.IsZero() {
		return 0
	}
	days := int(time.Since(t).Hours() / 24)
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

// scoreOpenProblems penalizes diagnoses still waiting on the owner.
func scoreOpenProblems(sessions []*models.DiagnosisSession, maxPoints int) int {
	pending := 0
	for _, sess := range sessions {
		if sess.Status == models.SessionStatusPendingUserInput {
			pending++
		}
	}
	switch {
	case pending == 0:
		return maxPoints
	case pending == 1:
		return int(float64(maxPoints) * 0.66)
	case pending == 2:
		return int(float64(maxPoints) * 0.4)
	default:
		return int(float64(maxPoints) * 0.15)
	}
}

// scoreOutcomes rewards diagnoses carried through to a conclusion.
func scoreOutcomes(sessions []*models.DiagnosisSession, maxPoints int) int {
	completed, cancelled := 0, 0
	for _, sess := range sessions {
		switch sess.Status {
		case models.SessionStatusCompleted:
			completed++
		case models.SessionStatusCancelled:
			cancelled++
		}
	}

	terminal := completed + cancelled
	if terminal == 0 {
		return maxPoints // no finished diagnoses yet, nothing held against it
	}

	ratio := float64(cancelled) / float64(terminal)
	// Higher cancellation ratio = worse follow-through
	return int(float64(maxPoints) * (1 - ratio*0.8))
}
