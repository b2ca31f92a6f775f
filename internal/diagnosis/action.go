package diagnosis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the AI's declared next step in a diagnosis cycle.
type Action int

const (
	ActionGetPlantVitals Action = iota
	ActionLogState
	ActionAskUser
	ActionConclude
)

var actionNames = map[string]Action{
	"GET_PLANT_VITALS": ActionGetPlantVitals,
	"LOG_STATE":        ActionLogState,
	"ASK_USER":         ActionAskUser,
	"CONCLUDE":         ActionConclude,
}

func (a Action) String() string {
	for name, action := range actionNames {
		if action == a {
			return name
		}
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Instruction is a validated diagnostic instruction extracted from an AI
// response. Only the fields for its Action are populated.
type Instruction struct {
	Action Action

	State          map[string]any // LOG_STATE
	Question       string         // ASK_USER
	Finding        string         // CONCLUDE
	Recommendation string         // CONCLUDE
}

// rawInstruction is the wire shape the model is instructed to return.
type rawInstruction struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// ParseInstruction extracts a JSON object from raw AI text and validates it
// against the action grammar. Validation is pure; it never touches session
// state.
func ParseInstruction(text string) (*Instruction, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var ri rawInstruction
	if err := json.Unmarshal(raw, &ri); err != nil {
		return nil, fmt.Errorf("%w\nraw response: %s", ErrParseFailure, text)
	}

	action, ok := actionNames[ri.Action]
	if !ok {
		if ri.Action == "" {
			return nil, fmt.Errorf("%w: missing action field", ErrInvalidAction)
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, ri.Action)
	}

	if len(ri.Payload) == 0 || string(ri.Payload) == "null" {
		return nil, fmt.Errorf("%w for action %s", ErrMissingPayload, action)
	}

	inst := &Instruction{Action: action}

	switch action {
	case ActionGetPlantVitals:
		// No required payload fields.

	case ActionLogState:
		var state map[string]any
		if err := json.Unmarshal(ri.Payload, &state); err != nil || len(state) == 0 {
			return nil, fmt.Errorf("%w: LOG_STATE payload must be a non-empty object", ErrInvalidPayload)
		}
		inst.State = state

	case ActionAskUser:
		var p struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal(ri.Payload, &p); err != nil || strings.TrimSpace(p.Question) == "" {
			return nil, fmt.Errorf("%w: ASK_USER payload must contain a 'question' string", ErrInvalidPayload)
		}
		inst.Question = p.Question

	case ActionConclude:
		var p struct {
			Finding        string `json:"finding"`
			Recommendation string `json:"recommendation"`
		}
		if err := json.Unmarshal(ri.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: CONCLUDE payload must be an object", ErrInvalidPayload)
		}
		if strings.TrimSpace(p.Finding) == "" {
			return nil, fmt.Errorf("%w: CONCLUDE payload must contain a 'finding' string", ErrInvalidPayload)
		}
		if strings.TrimSpace(p.Recommendation) == "" {
			return nil, fmt.Errorf("%w: CONCLUDE payload must contain a 'recommendation' string", ErrInvalidPayload)
		}
		inst.Finding = p.Finding
		inst.Recommendation = p.Recommendation
	}

	return inst, nil
}
