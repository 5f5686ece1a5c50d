// Package chat exposes the retrieval-augmented chat pipeline over HTTP:
// POST /chat for a single response, POST /chat/stream for newline-delimited
// JSON events.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/ragchat-gateway/internal/approach"
	"github.com/tjfontaine/ragchat-gateway/internal/auth"
	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// Handler serves the chat endpoints for one pipeline.
type Handler struct {
	approach approach.Approach
	logger   *slog.Logger
}

// NewHandler creates a chat handler.
func NewHandler(a approach.Approach, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{approach: a, logger: logger}
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
	Context  struct {
		Overrides  *domain.Overrides `json:"overrides"`
		AuthClaims map[string]any    `json:"auth_claims"`
	} `json:"context"`
	SessionState any `json:"session_state"`
}

// claims returns the caller's auth claims for the security filter: the ones
// carried in the request context block, or the ones the authentication layer
// put on the request context.
func (req *chatRequest) claims(r *http.Request) map[string]any {
	if len(req.Context.AuthClaims) > 0 {
		return req.Context.AuthClaims
	}
	return auth.ClaimsFromContext(r.Context())
}

// HandleChat serves one non-streaming chat request.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.APIError{
			Type:    domain.ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	resp, err := approach.Run(r.Context(), h.approach, req.Messages, req.Context.Overrides, req.claims(r), req.SessionState)
	if err != nil {
		h.logger.Error("chat request failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// HandleChatStream serves one streaming chat request as NDJSON, one event
// per line, flushed as produced. Failures after the first line are reported
// as a final error line; the events already delivered are not withdrawn.
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.APIError{
			Type:    domain.ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	events, err := approach.RunStream(r.Context(), h.approach, req.Messages, req.Context.Overrides, req.claims(r), req.SessionState)
	if err != nil {
		h.logger.Error("chat stream failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, &domain.APIError{
			Type:    domain.ErrorTypeServer,
			Message: "streaming not supported",
		})
		return
	}

	enc := json.NewEncoder(w)
	for event := range events {
		if event.Err != nil {
			h.logger.Error("stream interrupted", slog.String("error", event.Err.Error()))
			_ = enc.Encode(map[string]string{"error": event.Err.Error()})
			flusher.Flush()
			return
		}
		if err := enc.Encode(event); err != nil {
			return
		}
		flusher.Flush()
	}
}

// writeError maps an error to its HTTP status and writes a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode()
	} else {
		apiErr = &domain.APIError{Type: domain.ErrorTypeServer, Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": apiErr})
}
