package notes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/vitalvas/edgenotes/ai"
	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
	"go.uber.org/zap"
)

const (
	assistantPrompt = "You are a helpful assistant."
	writerPrompt    = "You are a writing assistant that adapts text to different styles and tones."
)

type aiRequest struct {
	Content any    `json:"content"`
	Target  string `json:"target"`
	Style   string `json:"style"`
}

// operation is one AI text transformation.
type operation struct {
	name   string
	system string

	// prompt builds the user message and the extra response fields.
	prompt func(req *aiRequest, content string) (string, map[string]string)
}

var (
	summarizeOp = operation{
		name:   "summarize",
		system: assistantPrompt,
		prompt: func(_ *aiRequest, content string) (string, map[string]string) {
			return "Summarize the following text in 3-5 concise sentences:\n\n" + content, nil
		},
	}

	bulletsOp = operation{
		name:   "bullets",
		system: assistantPrompt,
		prompt: func(_ *aiRequest, content string) (string, map[string]string) {
			return "Convert the following text into 5-8 clear bullet points. Use hyphens and concise language.\n\n" + content, nil
		},
	}

	rewriteOp = operation{
		name:   "rewrite",
		system: assistantPrompt,
		prompt: func(_ *aiRequest, content string) (string, map[string]string) {
			return "Rewrite the following text to be clearer and more concise while keeping the original intent.\n\n" + content, nil
		},
	}

	translateOp = operation{
		name:   "translate",
		system: assistantPrompt,
		prompt: func(req *aiRequest, content string) (string, map[string]string) {
			target := req.Target
			if target == "" {
				target = "es"
			}

			return fmt.Sprintf("Translate the following text into %s. Preserve meaning and tone.\n\n%s", target, content), nil
		},
	}

	styleOp = operation{
		name:   "style",
		system: writerPrompt,
		prompt: func(req *aiRequest, content string) (string, map[string]string) {
			s := LookupStyle(req.Style)

			return s.Prompt + ". Preserve the original meaning.\n\n" + content,
				map[string]string{"style": s.Name, "category": s.Category}
		},
	}
)

// Summarize condenses the content to a few sentences.
func (a *API) Summarize(c *mux.Context) (*mux.Response, error) {
	return a.runOperation(c, summarizeOp)
}

// Bullets converts the content to a hyphenated list.
func (a *API) Bullets(c *mux.Context) (*mux.Response, error) {
	return a.runOperation(c, bulletsOp)
}

// Rewrite makes the content clearer and shorter.
func (a *API) Rewrite(c *mux.Context) (*mux.Response, error) {
	return a.runOperation(c, rewriteOp)
}

// Translate translates the content to the target language, Spanish by
// default.
func (a *API) Translate(c *mux.Context) (*mux.Response, error) {
	return a.runOperation(c, translateOp)
}

// Style rewrites the content in a named style.
func (a *API) Style(c *mux.Context) (*mux.Response, error) {
	return a.runOperation(c, styleOp)
}

func (a *API) runOperation(c *mux.Context, op operation) (*mux.Response, error) {
	var req aiRequest
	if res, err := bind(c, &req); res != nil || err != nil {
		return res, err
	}

	content, ok := contentField(req.Content)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Invalid content"), nil
	}

	failed := fmt.Sprintf("AI %s failed", op.name)

	if a.cfg.AI == nil {
		return errorResponse(http.StatusServiceUnavailable, failed, ErrAIUnavailable.Error()), nil
	}

	prompt, extra := op.prompt(&req, content)
	input := ai.Input{Messages: []ai.Message{
		{Role: ai.RoleSystem, Content: op.system},
		{Role: ai.RoleUser, Content: prompt},
	}}

	ctx := c.Context()
	key := a.cacheKey(op.name, input)

	result, hit := a.cached(ctx, key)
	if !hit {
		out, err := a.cfg.AI.Run(ctx, a.cfg.Model, input)
		if err != nil {
			return errorResponse(http.StatusInternalServerError, failed, err.Error()), nil
		}

		result = out.Text()

		if a.cfg.CacheAI {
			c.WaitUntil(func(ctx context.Context) error {
				if err := a.cfg.Store.Put(ctx, key, result, nil); err != nil {
					a.cfg.Logger.Warn("ai cache write failed", zap.String("key", key), zap.Error(err))
				}

				return nil
			})
		}
	}

	body := map[string]string{"result": result}
	maps.Copy(body, extra)

	return mux.JSON(http.StatusOK, body), nil
}

// cacheKey identifies an operation on an exact model input.
func (a *API) cacheKey(op string, in ai.Input) string {
	h := sha256.New()
	h.Write([]byte(a.cfg.Model))

	for _, m := range in.Messages {
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
	}

	return "ai:" + op + ":" + hex.EncodeToString(h.Sum(nil))
}

func (a *API) cached(ctx context.Context, key string) (string, bool) {
	if !a.cfg.CacheAI {
		return "", false
	}

	result, err := a.cfg.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			a.cfg.Logger.Warn("ai cache read failed", zap.String("key", key), zap.Error(err))
		}

		return "", false
	}

	return result, true
}
