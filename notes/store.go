package notes

import (
	"errors"
	"net/http"

	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
)

func noteKey(key string) string {
	return "note:" + key
}

func sessionKey(id string) string {
	return "session:" + id + ":last"
}

type saveRequest struct {
	Content   any    `json:"content"`
	SessionID string `json:"sessionId"`
}

// Save stores a new note and, when a session ID is given, records it as
// the session's latest note.
func (a *API) Save(c *mux.Context) (*mux.Response, error) {
	var req saveRequest
	if res, err := bind(c, &req); res != nil || err != nil {
		return res, err
	}

	content, ok := contentField(req.Content)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Invalid content"), nil
	}

	ctx := c.Context()
	key := a.cfg.NewKey()

	meta := kv.Metadata{"created": a.cfg.Now().UnixMilli()}
	if err := a.cfg.Store.Put(ctx, noteKey(key), content, meta); err != nil {
		return errorResponse(http.StatusInternalServerError, "Save failed", err.Error()), nil
	}

	if req.SessionID != "" {
		if err := a.cfg.Store.Put(ctx, sessionKey(req.SessionID), key, nil); err != nil {
			return errorResponse(http.StatusInternalServerError, "Save failed", err.Error()), nil
		}
	}

	return mux.JSON(http.StatusOK, map[string]string{"key": key}), nil
}

type loadRequest struct {
	Key       string `json:"key"`
	SessionID string `json:"sessionId"`
}

// Load returns a note by key, or the latest note of a session.
func (a *API) Load(c *mux.Context) (*mux.Response, error) {
	var req loadRequest
	if res, err := bind(c, &req); res != nil || err != nil {
		return res, err
	}

	ctx := c.Context()
	key := req.Key

	if key == "" && req.SessionID != "" {
		last, err := a.cfg.Store.Get(ctx, sessionKey(req.SessionID))
		switch {
		case errors.Is(err, kv.ErrNotFound):
		case err != nil:
			return errorResponse(http.StatusInternalServerError, "Load failed", err.Error()), nil
		default:
			key = last
		}
	}

	if key == "" {
		return errorResponse(http.StatusBadRequest, "No key or session known"), nil
	}

	content, err := a.cfg.Store.Get(ctx, noteKey(key))
	if errors.Is(err, kv.ErrNotFound) {
		return errorResponse(http.StatusNotFound, "Note not found"), nil
	}
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Load failed", err.Error()), nil
	}

	return mux.JSON(http.StatusOK, map[string]string{"key": key, "content": content}), nil
}
