package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Run is called with a Workers AI model
// name.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string

	// Model replaces Workers AI model names passed to Run.
	// Defaults to DefaultGeminiModel.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Client defaults to the genai client's own.
	Client *http.Client
}

// Gemini runs chats on the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini backend. It returns ErrMissingCredentials
// when the API key is empty.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini needs an api key", ErrMissingCredentials)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.Client,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Run sends the chat to Gemini. System messages become the system
// instruction. Model names in the Workers AI "@cf/" namespace are
// replaced by the configured Gemini model.
func (g *Gemini) Run(ctx context.Context, model string, in Input) (*Output, error) {
	if len(in.Messages) == 0 {
		return nil, ErrEmptyInput
	}

	if model == "" || strings.HasPrefix(model, "@cf/") {
		model = g.model
	}

	var (
		system   []string
		contents []*genai.Content
	)

	for _, m := range in.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var cfg *genai.GenerateContentConfig
	if len(system) > 0 {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("ai: gemini generate: %w", err)
	}

	return &Output{Response: resp.Text()}, nil
}
