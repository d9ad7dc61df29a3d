// Package ai runs chat completions on a hosted inference service.
package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// DefaultModel is the Workers AI model used for every note operation.
const DefaultModel = "@cf/meta/llama-3.1-8b-instruct"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyInput is returned when Input carries no messages.
var ErrEmptyInput = errors.New("ai: input has no messages")

// Message is one turn of a chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input is the payload of a chat completion.
type Input struct {
	Messages []Message `json:"messages"`
}

// Output is the result of a run. Backends fill Response or Result; Raw
// holds the undecoded payload when one was received.
type Output struct {
	Response string          `json:"response,omitempty"`
	Result   string          `json:"result,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Text returns the generated text: Response, else Result, else the JSON
// form of the output.
func (o *Output) Text() string {
	switch {
	case o == nil:
		return "null"
	case o.Response != "":
		return o.Response
	case o.Result != "":
		return o.Result
	case len(o.Raw) > 0:
		return string(o.Raw)
	}

	data, _ := json.Marshal(o)

	return string(data)
}

// Runner runs a model on an input.
type Runner interface {
	Run(ctx context.Context, model string, in Input) (*Output, error)
}

// RunnerFunc is an adapter to allow the use of ordinary functions as
// runners.
type RunnerFunc func(ctx context.Context, model string, in Input) (*Output, error)

// Run calls f(ctx, model, in).
func (f RunnerFunc) Run(ctx context.Context, model string, in Input) (*Output, error) {
	return f(ctx, model, in)
}
