package diagnosis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstruction_ValidActions(t *testing.T) {
	t.Run("GET_PLANT_VITALS", func(t *testing.T) {
		inst, err := ParseInstruction(`{"action":"GET_PLANT_VITALS","payload":{}}`)
		require.NoError(t, err)
		assert.Equal(t, ActionGetPlantVitals, inst.Action)
	})

	t.Run("LOG_STATE", func(t *testing.T) {
		inst, err := ParseInstruction(`{"action":"LOG_STATE","payload":{"hypothesis":"sun scorch","confidence":0.7}}`)
		require.NoError(t, err)
		assert.Equal(t, ActionLogState, inst.Action)
		assert.Equal(t, "sun scorch", inst.State["hypothesis"])
		assert.Equal(t, 0.7, inst.State["confidence"])
	})

	t.Run("ASK_USER", func(t *testing.T) {
		inst, err := ParseInstruction(`{"action":"ASK_USER","payload":{"question":"How often do you water?"}}`)
		require.NoError(t, err)
		assert.Equal(t, ActionAskUser, inst.Action)
		assert.Equal(t, "How often do you water?", inst.Question)
	})

	t.Run("CONCLUDE", func(t *testing.T) {
		inst, err := ParseInstruction(`{"action":"CONCLUDE","payload":{"finding":"Root rot","recommendation":"Reduce watering"}}`)
		require.NoError(t, err)
		assert.Equal(t, ActionConclude, inst.Action)
		assert.Equal(t, "Root rot", inst.Finding)
		assert.Equal(t, "Reduce watering", inst.Recommendation)
	})
}

func TestParseInstruction_InvalidAction(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unrecognized action", `{"action":"RESTART_PLANT","payload":{}}`},
		{"missing action", `{"payload":{}}`},
		{"empty action", `{"action":"","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInstruction(tt.text)
			assert.True(t, errors.Is(err, ErrInvalidAction), "got: %v", err)
		})
	}
}

func TestParseInstruction_MissingPayload(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"absent payload", `{"action":"ASK_USER"}`},
		{"null payload", `{"action":"ASK_USER","payload":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInstruction(tt.text)
			assert.True(t, errors.Is(err, ErrMissingPayload), "got: %v", err)
		})
	}
}

func TestParseInstruction_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"LOG_STATE empty object", `{"action":"LOG_STATE","payload":{}}`},
		{"LOG_STATE non-object", `{"action":"LOG_STATE","payload":"hypothesis"}`},
		{"ASK_USER missing question", `{"action":"ASK_USER","payload":{"q":"hm?"}}`},
		{"ASK_USER empty question", `{"action":"ASK_USER","payload":{"question":"  "}}`},
		{"CONCLUDE missing finding", `{"action":"CONCLUDE","payload":{"recommendation":"water less"}}`},
		{"CONCLUDE missing recommendation", `{"action":"CONCLUDE","payload":{"finding":"root rot"}}`},
		{"CONCLUDE empty finding", `{"action":"CONCLUDE","payload":{"finding":"","recommendation":"water less"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInstruction(tt.text)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "got: %v", err)
		})
	}
}

func TestParseInstruction_FencedInput(t *testing.T) {
	inst, err := ParseInstruction("```json\n{\"action\":\"ASK_USER\",\"payload\":{\"question\":\"How much light?\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, ActionAskUser, inst.Action)
	assert.Equal(t, "How much light?", inst.Question)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "GET_PLANT_VITALS", ActionGetPlantVitals.String())
	assert.Equal(t, "LOG_STATE", ActionLogState.String())
	assert.Equal(t, "ASK_USER", ActionAskUser.String())
	assert.Equal(t, "CONCLUDE", ActionConclude.String())
}
