package plantid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.plant.id/v2"

// Client calls the Plant.id identification API.
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

// NewClient creates a Plant.id client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
}

// Request holds the identification inputs: base64-encoded images and an
// optional location hint.
type Request struct {
	Images    []string `json:"images"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type identifyResponse struct {
	Suggestions []struct {
		PlantName string `json:"plant_name"`
	} `json:"suggestions"`
}

// Identify submits the images and returns the top suggested plant name.
func (c *Client) Identify(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal identification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build identification request: %w", err)
	}
	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("plant.id API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("plant.id API error (%d): %s", resp.StatusCode, msg)
	}

	var out identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode identification response: %w", err)
	}

	if len(out.Suggestions) == 0 {
		return "", fmt.Errorf("no plant suggestions returned")
	}
	return out.Suggestions[0].PlantName, nil
}
