package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprouthq/plantcare/internal/diagnosis"
	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/store"
)

type scriptedAI struct {
	responses []string
	calls     int
}

func (s *scriptedAI) Complete(context.Context, string, string) (string, error) {
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp, nil
}

func newTestServer(t *testing.T, ai diagnosis.Completer) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(s, diagnosis.NewEngine(s, ai), "local-user", log), s
}

func seedPlant(t *testing.T, s store.Store) *models.Plant {
	t.Helper()
	p := &models.Plant{UserID: "local-user", Name: "Monstera deliciosa"}
	require.NoError(t, s.CreatePlant(context.Background(), p))
	return p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListPlants(t *testing.T) {
	srv, s := newTestServer(t, &scriptedAI{responses: []string{"{}"}})
	seedPlant(t, s)

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/plants", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var plants []models.Plant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plants))
	require.Len(t, plants, 1)
	assert.Equal(t, "Monstera deliciosa", plants[0].Name)
}

func TestGetPlant_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedAI{responses: []string{"{}"}})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/plants/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagnosisFlow(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
		`{"action":"CONCLUDE","payload":{"finding":"Sun Scorch","recommendation":"Move to indirect light"}}`,
	}}
	srv, s := newTestServer(t, ai)
	plant := seedPlant(t, s)
	router := srv.Router()

	// Start
	rec := doJSON(t, router, http.MethodPost, "/api/v1/plants/"+plant.ID+"/diagnoses",
		map[string]string{"problem": "leaves yellowing"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var out diagnosis.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, diagnosis.OutcomeAsk, out.Kind)
	assert.Equal(t, "How much light?", out.Question)

	// Reply
	rec = doJSON(t, router, http.MethodPost, "/api/v1/diagnoses/"+out.SessionID+"/reply",
		map[string]string{"message": "bright indirect"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, diagnosis.OutcomeConclude, out.Kind)
	assert.Equal(t, "Sun Scorch", out.Finding)

	// Further replies conflict with the completed session.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/diagnoses/"+out.SessionID+"/reply",
		map[string]string{"message": "anything else?"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// History lists the completed session.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/plants/"+plant.ID+"/diagnoses", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.DiagnosisSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionStatusCompleted, sessions[0].Status)
}

func TestStartDiagnosis_BadRequest(t *testing.T) {
	srv, s := newTestServer(t, &scriptedAI{responses: []string{"{}"}})
	plant := seedPlant(t, s)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/plants/"+plant.ID+"/diagnoses",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDiagnosis_MalformedAIResponse(t *testing.T) {
	srv, s := newTestServer(t, &scriptedAI{responses: []string{"I cannot answer that."}})
	plant := seedPlant(t, s)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/plants/"+plant.ID+"/diagnoses",
		map[string]string{"problem": "wilting"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCancelDiagnosis(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	srv, s := newTestServer(t, ai)
	plant := seedPlant(t, s)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/plants/"+plant.ID+"/diagnoses",
		map[string]string{"problem": "wilting"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var out diagnosis.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/diagnoses/"+out.SessionID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess models.DiagnosisSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, models.SessionStatusCancelled, sess.Status)

	// Cancelled is terminal: cancelling again conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/diagnoses/"+out.SessionID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteDiagnosis(t *testing.T) {
	ai := &scriptedAI{responses: []string{
		`{"action":"ASK_USER","payload":{"question":"How much light?"}}`,
	}}
	srv, s := newTestServer(t, ai)
	plant := seedPlant(t, s)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/plants/"+plant.ID+"/diagnoses",
		map[string]string{"problem": "wilting"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var out diagnosis.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/diagnoses/"+out.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/diagnoses/"+out.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
