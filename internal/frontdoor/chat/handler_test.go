package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/approach"
	"github.com/tjfontaine/ragchat-gateway/internal/auth"
	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// fakeApproach returns a fixed diagnostic envelope and replays a canned
// answer through a stub generator, or fails with a fixed error.
type fakeApproach struct {
	answer       string
	streamChunks []string
	err          error

	gotOverrides *domain.Overrides
	gotClaims    map[string]any
}

func (f *fakeApproach) SystemPrompt() string { return "You are helpful." }

func (f *fakeApproach) RunUntilFinalCall(_ context.Context, messages []domain.Message, overrides *domain.Overrides, authClaims map[string]any, shouldStream bool) (*domain.ExtraInfo, *approach.Deferred, error) {
	f.gotOverrides = overrides
	f.gotClaims = authClaims
	if f.err != nil {
		return nil, nil, f.err
	}
	if len(messages) == 0 {
		return nil, nil, domain.NewInputError("messages must not be empty")
	}
	extra := &domain.ExtraInfo{
		DataPoints: domain.DataPoints{Text: []string{"faq.md: excerpt"}},
		Thoughts:   []domain.ThoughtStep{{Title: "Search results", Content: nil}},
	}
	gen := &stubGenerator{answer: f.answer, streamChunks: f.streamChunks}
	return extra, approach.NewDeferred(gen, &openai.ChatCompletionRequest{Model: "gpt-4o-mini"}), nil
}

// stubGenerator satisfies the generator side of a deferred answer call.
type stubGenerator struct {
	answer       string
	streamChunks []string
}

func (g *stubGenerator) CreateChatCompletion(context.Context, *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	return &openai.ChatCompletionResponse{
		Choices: []openai.Choice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: g.answer}}},
	}, nil
}

func (g *stubGenerator) StreamChatCompletion(context.Context, *openai.ChatCompletionRequest) (<-chan openai.StreamResult, error) {
	out := make(chan openai.StreamResult, len(g.streamChunks))
	for _, content := range g.streamChunks {
		out <- openai.StreamResult{Chunk: &openai.ChatCompletionChunk{
			Choices: []openai.ChunkChoice{{Delta: openai.ChunkDelta{Content: content}}},
		}}
	}
	close(out)
	return out, nil
}

func (g *stubGenerator) CreateEmbedding(context.Context, *openai.EmbeddingRequest) (*openai.EmbeddingResponse, error) {
	return &openai.EmbeddingResponse{Data: []openai.Embedding{{Embedding: []float32{0}}}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleChat(t *testing.T) {
	h := NewHandler(&fakeApproach{answer: "The policy allows refunds."}, discardLogger())

	body := `{
  "messages": [{"role": "user", "content": "What is the refund policy?"}],
  "context": {"overrides": {"top": 5}},
  "session_state": {"conversation": "abc"}
}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp domain.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message.Content != "The policy allows refunds." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Context == nil || len(resp.Context.DataPoints.Text) != 1 {
		t.Errorf("context = %+v", resp.Context)
	}
	if state, ok := resp.SessionState.(map[string]any); !ok || state["conversation"] != "abc" {
		t.Errorf("session_state = %v", resp.SessionState)
	}
}

func TestHandleChat_OverridesForwarded(t *testing.T) {
	fake := &fakeApproach{answer: "ok"}
	h := NewHandler(fake, discardLogger())

	body := `{
  "messages": [{"role": "user", "content": "hi"}],
  "context": {"overrides": {"retrieval_mode": "text", "suggest_followup_questions": true, "top": 5}}
}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if fake.gotOverrides == nil {
		t.Fatal("overrides not forwarded")
	}
	if fake.gotOverrides.RetrievalMode != domain.RetrievalModeText || !fake.gotOverrides.SuggestFollowups {
		t.Errorf("overrides = %+v", fake.gotOverrides)
	}
	if fake.gotOverrides.Top == nil || *fake.gotOverrides.Top != 5 {
		t.Errorf("top = %v", fake.gotOverrides.Top)
	}
}

func TestHandleChat_AuthClaimsForwarded(t *testing.T) {
	fake := &fakeApproach{answer: "ok"}
	h := NewHandler(fake, discardLogger())

	body := `{
  "messages": [{"role": "user", "content": "hi"}],
  "context": {"auth_claims": {"oids": ["oid-1"], "groups": ["g-1"]}}
}`
	req := httptest.NewRequest("POST", "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if fake.gotClaims == nil {
		t.Fatal("auth claims did not reach the pipeline")
	}
	oids, ok := fake.gotClaims["oids"].([]any)
	if !ok || len(oids) != 1 || oids[0] != "oid-1" {
		t.Errorf("oids = %v", fake.gotClaims["oids"])
	}
	groups, ok := fake.gotClaims["groups"].([]any)
	if !ok || len(groups) != 1 || groups[0] != "g-1" {
		t.Errorf("groups = %v", fake.gotClaims["groups"])
	}
}

func TestHandleChat_ContextClaimsFallback(t *testing.T) {
	fake := &fakeApproach{answer: "ok"}
	h := NewHandler(fake, discardLogger())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req = req.WithContext(auth.WithClaims(req.Context(), map[string]any{"oids": []string{"oid-2"}}))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if fake.gotClaims == nil {
		t.Fatal("auth claims did not reach the pipeline")
	}
	if oids, ok := fake.gotClaims["oids"].([]string); !ok || oids[0] != "oid-2" {
		t.Errorf("oids = %v", fake.gotClaims["oids"])
	}
}

func TestHandleChatStream_AuthClaimsForwarded(t *testing.T) {
	fake := &fakeApproach{streamChunks: []string{"ok"}}
	h := NewHandler(fake, discardLogger())

	body := `{
  "messages": [{"role": "user", "content": "hi"}],
  "context": {"auth_claims": {"oids": ["oid-1"]}}
}`
	req := httptest.NewRequest("POST", "/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	if fake.gotClaims == nil {
		t.Fatal("auth claims did not reach the pipeline")
	}
}

func TestHandleChat_BadJSON(t *testing.T) {
	h := NewHandler(&fakeApproach{}, discardLogger())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChat_PipelineError(t *testing.T) {
	h := NewHandler(&fakeApproach{err: domain.NewInputError("last message must be text")}, discardLogger())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error *domain.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == nil || body.Error.Type != domain.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestHandleChat_UnknownError(t *testing.T) {
	h := NewHandler(&fakeApproach{err: errors.New("backend exploded")}, discardLogger())

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleChatStream(t *testing.T) {
	h := NewHandler(&fakeApproach{streamChunks: []string{"The answer is X. ", "<<What about Y?>>"}}, discardLogger())

	body := `{
  "messages": [{"role": "user", "content": "hi"}],
  "context": {"overrides": {"suggest_followup_questions": true}}
}`
	req := httptest.NewRequest("POST", "/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), lines)
	}

	var header domain.StreamEvent
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if header.Delta.Role != domain.RoleAssistant || header.Context == nil {
		t.Errorf("header = %+v", header)
	}

	var content domain.StreamEvent
	if err := json.Unmarshal([]byte(lines[1]), &content); err != nil {
		t.Fatalf("decode content event: %v", err)
	}
	if content.Delta.Content != "The answer is X. " {
		t.Errorf("content = %q", content.Delta.Content)
	}

	var trailing domain.StreamEvent
	if err := json.Unmarshal([]byte(lines[2]), &trailing); err != nil {
		t.Fatalf("decode trailing event: %v", err)
	}
	if trailing.Context == nil || len(trailing.Context.FollowupQuestions) != 1 {
		t.Errorf("trailing = %+v", trailing)
	}
}

func TestHandleChatStream_BadJSON(t *testing.T) {
	h := NewHandler(&fakeApproach{}, discardLogger())

	req := httptest.NewRequest("POST", "/chat/stream", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChatStream_PipelineError(t *testing.T) {
	h := NewHandler(&fakeApproach{err: domain.NewInputError("bad input")}, discardLogger())

	req := httptest.NewRequest("POST", "/chat/stream", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	// Pipeline failures before the first event are plain HTTP errors.
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
