package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultWorkersAIBaseURL is the Cloudflare API root.
const DefaultWorkersAIBaseURL = "https://api.cloudflare.com/client/v4"

// ErrMissingCredentials is returned when a backend is built without the
// credentials it needs.
var ErrMissingCredentials = errors.New("ai: missing credentials")

// APIError is a failure reported by the inference service.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("ai: request failed with status %d", e.StatusCode)
	}

	return fmt.Sprintf("ai: request failed with status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// WorkersAIConfig configures the Workers AI REST backend.
type WorkersAIConfig struct {
	AccountID string
	APIToken  string

	// BaseURL defaults to DefaultWorkersAIBaseURL.
	BaseURL string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// WorkersAI runs models through the Cloudflare Workers AI REST API.
type WorkersAI struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewWorkersAI returns a Workers AI backend. It returns
// ErrMissingCredentials when the account ID or token is empty.
func NewWorkersAI(cfg WorkersAIConfig) (*WorkersAI, error) {
	if cfg.AccountID == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("%w: workers ai needs an account id and api token", ErrMissingCredentials)
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultWorkersAIBaseURL
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &WorkersAI{
		endpoint: strings.TrimRight(base, "/") + "/accounts/" + url.PathEscape(cfg.AccountID) + "/ai/run/",
		token:    cfg.APIToken,
		client:   client,
	}, nil
}

type workersAIEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Run posts in to the model and decodes the result object.
func (w *WorkersAI) Run(ctx context.Context, model string, in Input) (*Output, error) {
	if len(in.Messages) == 0 {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("ai: encode input: %w", err)
	}

	// Model names contain slashes that are part of the path.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: run %s: %w", model, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ai: read response: %w", err)
	}

	var env workersAIEnvelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode/100 != 2 || (decodeErr == nil && !env.Success) {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		for _, e := range env.Errors {
			apiErr.Messages = append(apiErr.Messages, e.Message)
		}

		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("ai: decode response: %w", decodeErr)
	}

	return decodeOutput(env.Result)
}

// decodeOutput accepts either a result object or a bare string.
func decodeOutput(raw json.RawMessage) (*Output, error) {
	out := &Output{Raw: raw}

	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &out.Result); err != nil {
			return nil, fmt.Errorf("ai: decode result: %w", err)
		}

		return out, nil
	}

	if raw[0] != '{' {
		return out, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("ai: decode result: %w", err)
	}

	return out, nil
}
