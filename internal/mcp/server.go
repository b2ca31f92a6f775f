package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sprouthq/plantcare/internal/health"
	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/plants"
	"github.com/sprouthq/plantcare/internal/store"
)

// ScheduleGenerator produces an AI care schedule for a plant name.
type ScheduleGenerator interface {
	GenerateCareSchedule(ctx context.Context, plantName string) (*models.CareSchedule, error)
}

// Server wraps the plantcare data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	userID string
	care   ScheduleGenerator
	scorer *health.Scorer
}

// NewServer creates the MCP server wrapper. All tools operate on behalf of
// the given user. care may be nil when no AI credentials are configured; the
// generate-care tool then reports that instead of failing at startup.
func NewServer(s store.Store, userID string, care ScheduleGenerator) *Server {
	return &Server{
		store:  s,
		userID: userID,
		care:   care,
		scorer: health.NewScorer(),
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("plantcare", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.listPlantsTool())
	srv.AddTool(s.plantStatusTool())
	srv.AddTool(s.diagnosisHistoryTool())
	srv.AddTool(s.getDiagnosisTool())
	srv.AddTool(s.generateCareTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// plantcare_list_plants
func (s *Server) listPlantsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plantcare_list_plants",
		mcp.WithDescription("List all tracked plants. Returns a JSON array of plants with id, name, and care schedule summary."),
	)
	return tool, s.handleListPlants
}

func (s *Server) handleListPlants(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.store.ListPlants(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list plants: %v", err)), nil
	}

	type plantOut struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Light string `json:"light"`
		Water string `json:"water"`
	}

	out := make([]plantOut, len(list))
	for i, p := range list {
		out[i] = plantOut{
			ID:    p.ID,
			Name:  p.Name,
			Light: p.CareSchedule.Light,
			Water: p.CareSchedule.Water,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal plants: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// plantcare_plant_status
func (s *Server) plantStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plantcare_plant_status",
		mcp.WithDescription("Get a plant's full care schedule and a summary of its diagnosis sessions. Resolves the plant by id or name."),
		mcp.WithString("plant", mcp.Required(), mcp.Description("Plant id or name")),
	)
	return tool, s.handlePlantStatus
}

func (s *Server) handlePlantStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("plant")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: plant"), nil
	}

	p, err := plants.Resolve(ctx, s.store, ref, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plant not found: %s", ref)), nil
	}

	sessions, _ := s.store.ListSessionsByPlant(ctx, p.ID)
	pendingCount, completedCount, cancelledCount := 0, 0, 0
	for _, sess := range sessions {
		switch sess.Status {
		case models.SessionStatusPendingUserInput:
			pendingCount++
		case models.SessionStatusCompleted:
			completedCount++
		case models.SessionStatusCancelled:
			cancelledCount++
		}
	}

	score := s.scorer.Score(p, sessions)

	result := map[string]any{
		"plant": map[string]any{
			"id":         p.ID,
			"name":       p.Name,
			"created_at": p.CreatedAt,
		},
		"care_schedule": map[string]any{
			"light":             p.CareSchedule.Light,
			"water":             p.CareSchedule.Water,
			"humidity":          p.CareSchedule.Humidity,
			"temperature":       p.CareSchedule.Temperature,
			"care_instructions": p.CareSchedule.CareInstructions,
		},
		"diagnoses": map[string]any{
			"total":              len(sessions),
			"pending_user_input": pendingCount,
			"completed":          completedCount,
			"cancelled":          cancelledCount,
		},
		"care_score": map[string]any{
			"total":                 score.Total,
			"schedule_completeness": score.ScheduleCompleteness,
			"attention_recency":     score.AttentionRecency,
			"open_problems":         score.OpenProblems,
			"diagnosis_outcomes":    score.DiagnosisOutcomes,
		},
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// plantcare_diagnosis_history
func (s *Server) diagnosisHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plantcare_diagnosis_history",
		mcp.WithDescription("List diagnosis sessions for a plant, newest first. Each entry has id, status, the initial problem report, and the final finding for completed sessions."),
		mcp.WithString("plant", mcp.Required(), mcp.Description("Plant id or name")),
	)
	return tool, s.handleDiagnosisHistory
}

func (s *Server) handleDiagnosisHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("plant")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: plant"), nil
	}

	p, err := plants.Resolve(ctx, s.store, ref, s.userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plant not found: %s", ref)), nil
	}

	sessions, err := s.store.ListSessionsByPlant(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	type sessionOut struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		Problem        string `json:"problem"`
		Finding        string `json:"finding,omitempty"`
		Recommendation string `json:"recommendation,omitempty"`
		CreatedAt      string `json:"created_at"`
	}

	out := make([]sessionOut, len(sessions))
	for i, sess := range sessions {
		so := sessionOut{
			ID:        sess.ID,
			Status:    string(sess.Status),
			Problem:   sess.Context.InitialPrompt,
			CreatedAt: sess.CreatedAt.Format("2006-01-02 15:04"),
		}
		if sess.Context.Result != nil {
			so.Finding = sess.Context.Result.Finding
			so.Recommendation = sess.Context.Result.Recommendation
		}
		out[i] = so
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// plantcare_get_diagnosis
func (s *Server) getDiagnosisTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plantcare_get_diagnosis",
		mcp.WithDescription("Get a single diagnosis session including its full conversation history and accumulated observations."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Diagnosis session id")),
	)
	return tool, s.handleGetDiagnosis
}

func (s *Server) handleGetDiagnosis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", id)), nil
	}

	// Sessions are scoped through their plant's owner.
	if _, err := s.store.GetPlant(ctx, sess.PlantID, s.userID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", id)), nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// plantcare_generate_care
func (s *Server) generateCareTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plantcare_generate_care",
		mcp.WithDescription("Generate an AI care schedule for a plant species by name. Does not modify the collection."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Plant species name")),
	)
	return tool, s.handleGenerateCare
}

func (s *Server) handleGenerateCare(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}

	if s.care == nil {
		return mcp.NewToolResultError("no Anthropic API key configured"), nil
	}

	schedule, err := s.care.GenerateCareSchedule(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate care schedule: %v", err)), nil
	}

	data, err := json.Marshal(schedule)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal schedule: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
