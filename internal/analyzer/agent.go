package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

const systemPrompt = "You are an OCR engine. You transcribe the text visible in an image exactly as written, " +
	"line by line, without translating, summarizing or describing the image. " +
	"If there is no text, answer with an empty response."

// AgentConfig locates the Ollama server and the vision model.
type AgentConfig struct {
	BaseURL string
	Port    int
	Model   string
}

// NewAgent initializes a vision agent backed by a local Ollama server.
func NewAgent(ctx context.Context, cfg AgentConfig, logger *slog.Logger) (*agent.DefaultAgent, error) {
	// Fail fast when Ollama is not running.
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s:%d/api/tags", cfg.BaseURL, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("ollama not reachable: %w", err)
	}
	resp.Body.Close()

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	provider.UseModel(ctx, &types.Model{ID: cfg.Model})

	return agent.NewAgent(&agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: systemPrompt,
	}), nil
}
