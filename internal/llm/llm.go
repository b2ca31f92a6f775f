package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sprouthq/plantcare/internal/models"
)

// ErrUpstream tags transport and API failures from the model provider.
var ErrUpstream = errors.New("upstream AI error")

// Client wraps the Anthropic API for completions and care schedules.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Complete sends a system+user prompt pair and returns the raw completion
// text. This is the single entry point the diagnosis engine reasons through.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic API call: %v", ErrUpstream, err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return "", fmt.Errorf("%w: no text content in API response", ErrUpstream)
	}

	return text, nil
}

// buildCarePrompt constructs the system and user prompts for care schedule
// generation.
func buildCarePrompt(plantName string) (system string, user string) {
	system = `You are an expert Botanist. The user will provide you with the name of a plant.
Your task is to research this plant and provide a detailed care schedule.
You MUST return your response as a single, minified JSON object with NO markdown formatting.
The JSON object must have the following fields:
{
  "light": "description of light requirements",
  "water": "description of watering schedule",
  "humidity": "description of humidity requirements",
  "temperature": "description of temperature range",
  "care_instructions": "additional care tips and notes"
}
Be specific and practical in your recommendations.`

	user = "Generate a care schedule for: " + plantName
	return
}

// GenerateCareSchedule asks the model for a care schedule for the named
// plant and parses the structured reply.
func (c *Client) GenerateCareSchedule(ctx context.Context, plantName string) (*models.CareSchedule, error) {
	systemPrompt, userPrompt := buildCarePrompt(plantName)

	text, err := c.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	text = stripFences(text)

	var schedule models.CareSchedule
	if err := json.Unmarshal([]byte(text), &schedule); err != nil {
		return nil, fmt.Errorf("parse care schedule as JSON: %w\nraw response: %s", err, text)
	}

	return &schedule, nil
}

// stripFences removes markdown code fencing if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
