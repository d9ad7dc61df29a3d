package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputText(t *testing.T) {
	tests := []struct {
		name   string
		output *Output
		want   string
	}{
		{name: "response wins", output: &Output{Response: "r", Result: "x"}, want: "r"},
		{name: "result fallback", output: &Output{Result: "x"}, want: "x"},
		{name: "raw json fallback", output: &Output{Raw: json.RawMessage(`{"usage":{"tokens":3}}`)}, want: `{"usage":{"tokens":3}}`},
		{name: "empty output", output: &Output{}, want: `{}`},
		{name: "nil output", output: nil, want: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.output.Text())
		})
	}
}

func TestRunnerFunc(t *testing.T) {
	var gotModel string

	r := RunnerFunc(func(_ context.Context, model string, in Input) (*Output, error) {
		gotModel = model
		return &Output{Response: in.Messages[0].Content}, nil
	})

	out, err := r.Run(context.Background(), DefaultModel, Input{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text())
	assert.Equal(t, DefaultModel, gotModel)
}
