// Package approach implements the retrieval-augmented chat pipeline: derive a
// search query from the conversation, retrieve passages from the document
// index, and generate a grounded answer, either as a single completion or as
// a normalized token stream.
package approach

import (
	"context"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/api/search"
	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// Generator issues chat completion and embedding requests.
type Generator interface {
	CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	StreamChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (<-chan openai.StreamResult, error)
	CreateEmbedding(ctx context.Context, req *openai.EmbeddingRequest) (*openai.EmbeddingResponse, error)
}

// Retriever performs ranked retrieval against the document index.
type Retriever interface {
	Search(ctx context.Context, q *search.Query) ([]search.Document, error)
}

// Approach is a chat pipeline variant. RunUntilFinalCall performs every stage
// up to, but not including, the answer-generation call, so the caller can
// deliver diagnostics before committing to the final (expensive) request.
type Approach interface {
	// SystemPrompt returns the deployment's answer-generation system template.
	SystemPrompt() string

	// RunUntilFinalCall runs query generation and retrieval, returning the
	// diagnostic envelope and the prepared, not-yet-issued answer call.
	RunUntilFinalCall(ctx context.Context, messages []domain.Message, overrides *domain.Overrides, authClaims map[string]any, shouldStream bool) (*domain.ExtraInfo, *Deferred, error)
}

// Deferred is a prepared answer-generation call that has not been issued yet.
// Exactly one of Complete or Stream is invoked by a finalizer.
type Deferred struct {
	generator Generator
	req       *openai.ChatCompletionRequest
}

// NewDeferred wraps a prepared request so it can be issued later through gen.
func NewDeferred(gen Generator, req *openai.ChatCompletionRequest) *Deferred {
	return &Deferred{generator: gen, req: req}
}

// Complete issues the prepared call as a single completion.
func (d *Deferred) Complete(ctx context.Context) (*openai.ChatCompletionResponse, error) {
	req := *d.req
	req.Stream = false
	return d.generator.CreateChatCompletion(ctx, &req)
}

// Stream issues the prepared call as a token stream.
func (d *Deferred) Stream(ctx context.Context) (<-chan openai.StreamResult, error) {
	req := *d.req
	return d.generator.StreamChatCompletion(ctx, &req)
}
