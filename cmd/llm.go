package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/sprouthq/plantcare/internal/llm"
	"github.com/sprouthq/plantcare/internal/plantid"
)

// newLLMClient creates an LLM client from config/env, or fails if no API key
// is configured.
func newLLMClient() (*llm.Client, error) {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model")), nil
}

// newPlantIDClient creates a Plant.id client from config/env.
func newPlantIDClient() (*plantid.Client, error) {
	apiKey := viper.GetString("plantid.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("PLANT_ID_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Plant.id API key configured (set plantid.api_key or PLANT_ID_API_KEY)")
	}
	return plantid.NewClient(apiKey), nil
}
