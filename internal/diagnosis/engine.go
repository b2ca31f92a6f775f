package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/store"
)

// maxCycleSteps bounds the number of AI round-trips per Start/Update call.
// Only ASK_USER and CONCLUDE terminate a cycle-run, so without a cap a model
// stuck on LOG_STATE would loop forever.
const maxCycleSteps = 8

// Completer sends a system+user prompt pair to a language model and returns
// the raw completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OutcomeKind tags the two ways a cycle-run can end.
type OutcomeKind string

const (
	OutcomeAsk      OutcomeKind = "ask"
	OutcomeConclude OutcomeKind = "conclude"
)

// Outcome is the externally observable result of a cycle-run: either the AI
// needs another answer from the user, or the diagnosis is complete.
type Outcome struct {
	Kind           OutcomeKind `json:"kind"`
	SessionID      string      `json:"session_id"`
	Question       string      `json:"question,omitempty"`
	Finding        string      `json:"finding,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
}

// Engine drives the diagnostic conversation state machine. A single session
// is not reentrant: callers must not run concurrent cycles against the same
// session id. Independent sessions are safe to process concurrently.
type Engine struct {
	store store.Store
	ai    Completer
}

// NewEngine creates a diagnosis engine.
func NewEngine(s store.Store, ai Completer) *Engine {
	return &Engine{store: s, ai: ai}
}

// Start creates a new diagnosis session for the plant, seeded with the
// user's problem description and a vitals snapshot, then runs the first
// cycle.
func (e *Engine) Start(ctx context.Context, plantID, problem, userID string) (*Outcome, error) {
	plant, err := e.store.GetPlant(ctx, plantID, userID)
	if err != nil {
		return nil, err
	}

	sess := models.NewDiagnosisSession(plant.ID, problem)
	sess.Context.PlantVitals = &models.PlantVitals{
		Name:         plant.Name,
		CareSchedule: plant.CareSchedule,
	}

	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	return e.runCycle(ctx, sess, userID)
}

// Update appends the user's answer to a pending session and runs another
// cycle. It fails with ErrUnauthorized if the session's plant does not
// belong to the caller, and ErrInvalidState if the session is no longer
// awaiting input.
func (e *Engine) Update(ctx context.Context, sessionID, answer, userID string) (*Outcome, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.GetPlant(ctx, sess.PlantID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrUnauthorized)
		}
		return nil, err
	}

	if sess.Status != models.SessionStatusPendingUserInput {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrInvalidState)
	}

	sess.Context.History = append(sess.Context.History, models.Turn{Role: "user", Message: answer})

	return e.runCycle(ctx, sess, userID)
}

// Get returns a session after verifying the caller owns its plant.
func (e *Engine) Get(ctx context.Context, sessionID, userID string) (*models.DiagnosisSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetPlant(ctx, sess.PlantID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrUnauthorized)
		}
		return nil, err
	}
	return sess, nil
}

// Cancel marks a pending session cancelled. Terminal sessions cannot be
// cancelled again.
func (e *Engine) Cancel(ctx context.Context, sessionID, userID string) error {
	sess, err := e.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if sess.Status.Terminal() {
		return fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrInvalidState)
	}

	sess.Status = models.SessionStatusCancelled
	return e.store.UpdateSession(ctx, sess)
}

// Delete removes a session after verifying ownership.
func (e *Engine) Delete(ctx context.Context, sessionID, userID string) error {
	if _, err := e.Get(ctx, sessionID, userID); err != nil {
		return err
	}
	return e.store.DeleteSession(ctx, sessionID)
}

// ListByPlant returns a plant's sessions, newest first, after verifying
// ownership.
func (e *Engine) ListByPlant(ctx context.Context, plantID, userID string) ([]*models.DiagnosisSession, error) {
	if _, err := e.store.GetPlant(ctx, plantID, userID); err != nil {
		return nil, err
	}
	return e.store.ListSessionsByPlant(ctx, plantID)
}

// runCycle executes the engine loop: send context to the model, validate its
// instruction, apply it, and repeat until the model asks the user something
// or concludes. Every applied action is persisted before the next step; a
// parse or validation failure aborts the call without committing anything
// from the failed step.
func (e *Engine) runCycle(ctx context.Context, sess *models.DiagnosisSession, userID string) (*Outcome, error) {
	for step := 0; step < maxCycleSteps; step++ {
		user, err := buildUserPrompt(&sess.Context)
		if err != nil {
			return nil, err
		}

		raw, err := e.ai.Complete(ctx, systemPrompt, user)
		if err != nil {
			return nil, fmt.Errorf("ai completion: %w", err)
		}

		inst, err := ParseInstruction(raw)
		if err != nil {
			return nil, err
		}

		switch inst.Action {
		case ActionGetPlantVitals:
			// Vitals are seeded at Start; this re-reads them on request.
			plant, err := e.store.GetPlant(ctx, sess.PlantID, userID)
			if err != nil {
				return nil, err
			}
			sess.Context.PlantVitals = &models.PlantVitals{
				Name:         plant.Name,
				CareSchedule: plant.CareSchedule,
			}
			if err := e.store.UpdateSession(ctx, sess); err != nil {
				return nil, err
			}

		case ActionLogState:
			if sess.Context.State == nil {
				sess.Context.State = map[string]any{}
			}
			for k, v := range inst.State {
				sess.Context.State[k] = v
			}
			if err := e.store.UpdateSession(ctx, sess); err != nil {
				return nil, err
			}

		case ActionAskUser:
			sess.Context.History = append(sess.Context.History, models.Turn{
				Role:    "assistant",
				Message: inst.Question,
			})
			sess.Status = models.SessionStatusPendingUserInput
			if err := e.store.UpdateSession(ctx, sess); err != nil {
				return nil, err
			}
			return &Outcome{
				Kind:      OutcomeAsk,
				SessionID: sess.ID,
				Question:  inst.Question,
			}, nil

		case ActionConclude:
			sess.Context.Result = &models.DiagnosisResult{
				Finding:        inst.Finding,
				Recommendation: inst.Recommendation,
			}
			sess.Status = models.SessionStatusCompleted
			if err := e.store.UpdateSession(ctx, sess); err != nil {
				return nil, err
			}
			return &Outcome{
				Kind:           OutcomeConclude,
				SessionID:      sess.ID,
				Finding:        inst.Finding,
				Recommendation: inst.Recommendation,
			}, nil
		}
	}

	return nil, fmt.Errorf("diagnosis cycle exceeded %d steps without asking or concluding", maxCycleSteps)
}
