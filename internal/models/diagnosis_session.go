package models

import "time"

// SessionStatus represents the state of a diagnosis session.
type SessionStatus string

const (
	SessionStatusPendingUserInput SessionStatus = "PENDING_USER_INPUT"
	SessionStatusCompleted        SessionStatus = "COMPLETED"
	SessionStatusCancelled        SessionStatus = "CANCELLED"
)

// Terminal reports whether the session can no longer accept user input.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Turn is a single entry in the conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Message string `json:"message"`
}

// PlantVitals is the snapshot of plant data embedded in the diagnosis
// context for the AI's reference.
type PlantVitals struct {
	Name         string       `json:"name"`
	CareSchedule CareSchedule `json:"care_schedule"`
}

// DiagnosisResult holds the final outcome of a completed session.
type DiagnosisResult struct {
	Finding        string `json:"finding"`
	Recommendation string `json:"recommendation"`
}

// DiagnosisContext is the full reasoning context sent to the AI on every
// cycle. InitialPrompt is immutable, History is append-only, and State is
// the open key/value bag the AI accumulates hypotheses in.
type DiagnosisContext struct {
	InitialPrompt string           `json:"initial_prompt"`
	History       []Turn           `json:"conversation_history"`
	State         map[string]any   `json:"state"`
	PlantVitals   *PlantVitals     `json:"plant_vitals"`
	Result        *DiagnosisResult `json:"result,omitempty"`
}

// DiagnosisSession represents one diagnostic conversation about a plant.
type DiagnosisSession struct {
	ID        string
	PlantID   string
	Status    SessionStatus
	Context   DiagnosisContext
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDiagnosisSession creates a pending session seeded with the user's
// problem description as the first conversation turn.
func NewDiagnosisSession(plantID, problem string) *DiagnosisSession {
	return &DiagnosisSession{
		PlantID: plantID,
		Status:  SessionStatusPendingUserInput,
		Context: DiagnosisContext{
			InitialPrompt: problem,
			History:       []Turn{{Role: "user", Message: problem}},
			State:         map[string]any{},
		},
	}
}
