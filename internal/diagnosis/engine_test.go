package diagnosis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/store"
)

// scriptedAI returns canned responses in order and records the prompts it
// was sent.
type scriptedAI struct {
	responses []string
	calls     int
	prompts   []string
}

func (s *scriptedAI) Complete(_ context.Context, _, user string) (string, error) {
	s.prompts = append(s.prompts, user)
	if s.calls >= len(s.responses) {
		// Keep repeating the last response so step-cap tests can loop.
		return s.responses[len(s.responses)-1], nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

type failingAI struct{ err error }

func (f *failingAI) Complete(context.Context, string, string) (string, error) {
	return "", f.err
}

func newTestEngine(t *testing.T, ai Completer) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewEngine(s, ai), s
}

func seedPlant(t *testing.T, s store.Store, userID string) *models.Plant {
	t.Helper()
	p := &models.Plant{
		UserID: userID,
		Name:   "Monstera deliciosa",
		CareSchedule: models.CareSchedule{
			Light: "Bright, indirect sunlight",
			Water: "Water when top inch of soil is dry",
		},
	}
	require.NoError(t, s.CreatePlant(context.Background(), p))
	return p
}

func TestStart_AskUser(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "leaves yellowing", "local-user")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "How much light?", out.Question)
	assert.NotEmpty(t, out.SessionID)

	sess, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPendingUserInput, sess.Status)
	assert.Equal(t, "leaves yellowing", sess.Context.InitialPrompt)

	// History: user's problem plus the assistant's question.
	require.Len(t, sess.Context.History, 2)
	assert.Equal(t, models.Turn{Role: "user", Message: "leaves yellowing"}, sess.Context.History[0])
	assert.Equal(t, models.Turn{Role: "assistant", Message: "How much light?"}, sess.Context.History[1])

	// Vitals snapshot is seeded at start.
	require.NotNil(t, sess.Context.PlantVitals)
	assert.Equal(t, plant.Name, sess.Context.PlantVitals.Name)

	// The model saw the context, including the problem description.
	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], "leaves yellowing")
	assert.Contains(t, ai.prompts[0], plant.Name)
}

func TestStart_PlantNotFound(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedAI{responses: []string{`{}`}})

	_, err := engine.Start(context.Background(), "no-such-plant", "wilting", "local-user")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdate_Conclude(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
		`{"action":"CONCLUDE","payload":{"finding":"Sun Scorch","recommendation":"Move to indirect light"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "leaves yellowing", "local-user")
	require.NoError(t, err)
	require.Equal(t, OutcomeAsk, out.Kind)

	out, err = engine.Update(ctx, out.SessionID, "bright indirect", "local-user")
	require.NoError(t, err)

	assert.Equal(t, OutcomeConclude, out.Kind)
	assert.Equal(t, "Sun Scorch", out.Finding)
	assert.Equal(t, "Move to indirect light", out.Recommendation)

	sess, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.Context.Result)
	assert.Equal(t, "Sun Scorch", sess.Context.Result.Finding)
	assert.Equal(t, "Move to indirect light", sess.Context.Result.Recommendation)

	// History grew by exactly one user turn; the concluding reply adds none.
	require.Len(t, sess.Context.History, 3)
	assert.Equal(t, models.Turn{Role: "user", Message: "bright indirect"}, sess.Context.History[2])
}

func TestUpdate_FencedResponse(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		"Here is my assessment:\n```json\n{\"action\":\"ASK_USER\",\"payload\":{\"question\":\"Any brown spots?\"}}\n```",
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")

	out, err := engine.Start(context.Background(), plant.ID, "drooping", "local-user")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, "Any brown spots?", out.Question)
}

func TestUpdate_SessionNotFound(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedAI{responses: []string{`{}`}})

	_, err := engine.Update(context.Background(), "no-such-session", "answer", "local-user")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdate_Unauthorized(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "alice")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "wilting", "alice")
	require.NoError(t, err)

	_, err = engine.Update(ctx, out.SessionID, "answer", "bob")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestUpdate_CompletedSessionIsInvalidState(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"CONCLUDE","payload":{"finding":"Overwatering","recommendation":"Let soil dry out"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "yellow leaves", "local-user")
	require.NoError(t, err)
	require.Equal(t, OutcomeConclude, out.Kind)

	before, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)

	_, err = engine.Update(ctx, out.SessionID, "more info", "local-user")
	assert.True(t, errors.Is(err, ErrInvalidState))

	// Session unmodified by the refused update.
	after, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Context, after.Context)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestCycle_LogStateThenAsk(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"LOG_STATE","payload":{"hypothesis":"sun scorch","confidence":0.6}}`,
		`{"action":"LOG_STATE","payload":{"confidence":0.8}}`,
		`{"action":"ASK_USER","payload":{"question":"Is the plant near a window?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "scorched leaves", "local-user")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, out.Kind)
	assert.Equal(t, 3, ai.calls)

	sess, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)

	// New keys added, existing keys overwritten.
	assert.Equal(t, "sun scorch", sess.Context.State["hypothesis"])
	assert.Equal(t, 0.8, sess.Context.State["confidence"])
}

func TestCycle_GetPlantVitalsRepopulates(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"GET_PLANT_VITALS","payload":{}}`,
		`{"action":"ASK_USER","payload":{"question":"How old is the plant?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "pale leaves", "local-user")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, out.Kind)

	sess, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.Context.PlantVitals)
	assert.Equal(t, plant.Name, sess.Context.PlantVitals.Name)
	assert.Equal(t, plant.CareSchedule, sess.Context.PlantVitals.CareSchedule)
}

func TestCycle_StepCap(t *testing.T) {
	// A model stuck on LOG_STATE forever must not loop indefinitely.
	ai := &scriptedAI{responses: []string{
		`{"action":"LOG_STATE","payload":{"stuck":true}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")

	_, err := engine.Start(context.Background(), plant.ID, "wilting", "local-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

func TestCycle_MalformedResponseLeavesSessionUntouched(t *testing.T) {
	askThenProse := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
		`I am sorry, I cannot help with that.`,
	}}
	engine, s := newTestEngine(t, askThenProse)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "leaves yellowing", "local-user")
	require.NoError(t, err)

	before, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)

	_, err = engine.Update(ctx, out.SessionID, "bright indirect", "local-user")
	assert.True(t, errors.Is(err, ErrParseFailure))

	// Fail-fast: the failed cycle committed nothing, so a retried Update
	// re-sends the same context.
	after, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.Context, after.Context)
	assert.Equal(t, models.SessionStatusPendingUserInput, after.Status)
}

func TestCycle_UpstreamErrorPropagates(t *testing.T) {
	upstream := errors.New("api unavailable")
	engine, s := newTestEngine(t, &failingAI{err: upstream})
	plant := seedPlant(t, s, "local-user")

	_, err := engine.Start(context.Background(), plant.ID, "wilting", "local-user")
	assert.True(t, errors.Is(err, upstream))
}

func TestGetAndDelete(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "alice")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "wilting", "alice")
	require.NoError(t, err)

	sess, err := engine.Get(ctx, out.SessionID, "alice")
	require.NoError(t, err)
	assert.Equal(t, plant.ID, sess.PlantID)

	_, err = engine.Get(ctx, out.SessionID, "bob")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	err = engine.Delete(ctx, out.SessionID, "bob")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	require.NoError(t, engine.Delete(ctx, out.SessionID, "alice"))
	_, err = s.GetSession(ctx, out.SessionID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCancel(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "alice")
	ctx := context.Background()

	out, err := engine.Start(ctx, plant.ID, "wilting", "alice")
	require.NoError(t, err)

	err = engine.Cancel(ctx, out.SessionID, "bob")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	require.NoError(t, engine.Cancel(ctx, out.SessionID, "alice"))

	sess, err := s.GetSession(ctx, out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, sess.Status)

	// Terminal sessions stay terminal.
	err = engine.Cancel(ctx, out.SessionID, "alice")
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = engine.Update(ctx, out.SessionID, "more light", "alice")
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestListByPlant(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"Q1?"}}`,
		`{"action":"ASK_USER","payload":{"question":"Q2?"}}`,
	}}
	engine, s := newTestEngine(t, ai)
	plant := seedPlant(t, s, "local-user")
	ctx := context.Background()

	_, err := engine.Start(ctx, plant.ID, "first problem", "local-user")
	require.NoError(t, err)
	second, err := engine.Start(ctx, plant.ID, "second problem", "local-user")
	require.NoError(t, err)

	sessions, err := engine.ListByPlant(ctx, plant.ID, "local-user")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.SessionID, sessions[0].ID)

	_, err = engine.ListByPlant(ctx, plant.ID, "someone-else")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
