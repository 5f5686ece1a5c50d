package approach

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/api/search"
	"github.com/tjfontaine/ragchat-gateway/internal/auth"
	"github.com/tjfontaine/ragchat-gateway/internal/domain"
	"github.com/tjfontaine/ragchat-gateway/internal/prompts"
	"github.com/tjfontaine/ragchat-gateway/internal/tokens"
)

// Response token budgets reserved out of the model's context window.
// Query generation is capped low: too high wastes latency, but too low risks
// malformed tool-call JSON.
const (
	queryResponseTokenLimit  = 100
	answerResponseTokenLimit = 1024
)

// Config wires a ChatReadRetrieveRead pipeline.
type Config struct {
	Generator           Generator
	Retriever           Retriever
	Filters             *auth.FilterBuilder
	Prompts             *prompts.Store
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
	Logger              *slog.Logger
}

// ChatReadRetrieveRead is a three-step pipeline: ask the model to turn the
// user's question into a search query, retrieve relevant documents from the
// index, then send the conversation history, original question and retrieved
// sources back to the model to generate a grounded answer.
type ChatReadRetrieveRead struct {
	generator           Generator
	retriever           Retriever
	filters             *auth.FilterBuilder
	prompts             *prompts.Store
	counter             *tokens.Counter
	chatModel           string
	embeddingModel      string
	embeddingDimensions int
	contextLimit        int
	logger              *slog.Logger
}

// NewChatReadRetrieveRead creates the pipeline.
func NewChatReadRetrieveRead(cfg Config) *ChatReadRetrieveRead {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatReadRetrieveRead{
		generator:           cfg.Generator,
		retriever:           cfg.Retriever,
		filters:             cfg.Filters,
		prompts:             cfg.Prompts,
		counter:             tokens.NewCounter(),
		chatModel:           cfg.ChatModel,
		embeddingModel:      cfg.EmbeddingModel,
		embeddingDimensions: cfg.EmbeddingDimensions,
		contextLimit:        tokens.ContextLimit(cfg.ChatModel),
		logger:              logger,
	}
}

// SystemPrompt returns the deployment's answer-generation system template.
func (a *ChatReadRetrieveRead) SystemPrompt() string {
	return a.prompts.SystemTemplate()
}

// RunUntilFinalCall runs query generation and retrieval, then returns the
// diagnostic envelope together with the prepared answer-generation call. The
// answer call is not issued here; the finalizers decide when and how.
func (a *ChatReadRetrieveRead) RunUntilFinalCall(
	ctx context.Context,
	messages []domain.Message,
	overrides *domain.Overrides,
	authClaims map[string]any,
	shouldStream bool,
) (*domain.ExtraInfo, *Deferred, error) {
	if overrides == nil {
		overrides = &domain.Overrides{}
	}
	if len(messages) == 0 {
		return nil, nil, domain.NewInputError("conversation history is empty")
	}
	last := messages[len(messages)-1]
	if !last.IsText() {
		return nil, nil, domain.NewInputError("the most recent message content must be a string")
	}
	originalUserQuery := last.Content
	pastMessages := messages[:len(messages)-1]

	top := overrides.ResultCount()
	filter := a.filters.BuildFilter(overrides, authClaims)
	userQueryRequest := "Generate search query for: " + originalUserQuery

	searchTool := openai.Tool{
		Type: "function",
		Function: openai.FunctionTool{
			Name:        searchToolName,
			Description: "Retrieve sources from the knowledge base search index",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search_query": map[string]any{
						"type":        "string",
						"description": "Query string to retrieve documents from the search index eg: 'Health care plan'",
					},
				},
				"required": []string{"search_query"},
			},
		},
	}

	// STEP 1: Generate an optimized keyword search query based on the chat
	// history and the last question.
	queryMessages, err := a.counter.BuildMessages(
		a.chatModel,
		prompts.QueryTemplate,
		a.prompts.FewShots(),
		[]tokens.Tool{{
			Name:        searchTool.Function.Name,
			Description: searchTool.Function.Description,
			Parameters:  searchTool.Function.Parameters,
		}},
		pastMessages,
		userQueryRequest,
		a.contextLimit-queryResponseTokenLimit,
	)
	if err != nil {
		return nil, nil, err
	}

	// Minimize creativity for search query generation
	queryTemperature := float32(0)
	queryCompletion, err := a.generator.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    toWireMessages(queryMessages),
		Temperature: &queryTemperature,
		MaxTokens:   queryResponseTokenLimit,
		N:           1,
		Tools:       []openai.Tool{searchTool},
		Seed:        overrides.Seed,
	})
	if err != nil {
		return nil, nil, err
	}

	queryText := searchQueryFromCompletion(queryCompletion, originalUserQuery)
	a.logger.Debug("derived search query",
		slog.String("query", queryText),
		slog.Bool("from_original", queryText == originalUserQuery))

	// STEP 2: Retrieve relevant documents from the search index with the
	// optimized query. If retrieval includes vectors, compute an embedding
	// for the query first.
	var vectors [][]float32
	if overrides.UseVectorSearch() {
		embedding, err := a.generator.CreateEmbedding(ctx, &openai.EmbeddingRequest{
			Model:      a.embeddingModel,
			Input:      []string{queryText},
			Dimensions: a.embeddingDimensions,
		})
		if err != nil {
			return nil, nil, err
		}
		if len(embedding.Data) > 0 {
			vectors = append(vectors, embedding.Data[0].Embedding)
		}
	}

	results, err := a.retriever.Search(ctx, &search.Query{
		Top:                  top,
		Text:                 queryText,
		Filter:               filter,
		Vectors:              vectors,
		UseTextSearch:        overrides.UseTextSearch(),
		UseVectorSearch:      overrides.UseVectorSearch(),
		UseSemanticRanker:    overrides.SemanticRanker,
		UseSemanticCaptions:  overrides.SemanticCaptions,
		MinimumSearchScore:   overrides.MinimumSearchScore,
		MinimumRerankerScore: overrides.MinimumRerankerScore,
	})
	if err != nil {
		return nil, nil, err
	}

	sources := search.SourcesContent(results, overrides.SemanticCaptions)

	// STEP 3: Generate a contextual and content-specific answer using the
	// search results and chat history. The caller may replace the entire
	// system prompt, or inject into the default one using ">>>".
	followupDirective := ""
	if overrides.SuggestFollowups {
		followupDirective = prompts.FollowupDirective
	}
	systemMessage, err := a.prompts.SystemPrompt(overrides.PromptTemplate, followupDirective)
	if err != nil {
		return nil, nil, err
	}

	// The model does not handle lengthy system messages well, so the sources
	// ride along in the latest user turn instead.
	answerMessages, err := a.counter.BuildMessages(
		a.chatModel,
		systemMessage,
		nil,
		nil,
		pastMessages,
		originalUserQuery+"\n\nSources:\n"+strings.Join(sources, "\n"),
		a.contextLimit-answerResponseTokenLimit,
	)
	if err != nil {
		return nil, nil, err
	}

	serialized := make([]map[string]any, 0, len(results))
	for i := range results {
		serialized = append(serialized, results[i].Serialize())
	}

	extra := &domain.ExtraInfo{
		DataPoints: domain.DataPoints{Text: sources},
		Thoughts: []domain.ThoughtStep{
			{
				Title:   "Prompt to generate search query",
				Content: queryMessages,
				Props:   map[string]any{"model": a.chatModel},
			},
			{
				Title:   "Search using generated search query",
				Content: queryText,
				Props: map[string]any{
					"use_semantic_captions": overrides.SemanticCaptions,
					"use_semantic_ranker":   overrides.SemanticRanker,
					"top":                   top,
					"filter":                filter,
					"use_vector_search":     overrides.UseVectorSearch(),
					"use_text_search":       overrides.UseTextSearch(),
				},
			},
			{
				Title:   "Search results",
				Content: serialized,
			},
			{
				Title:   "Prompt to generate answer",
				Content: answerMessages,
				Props:   map[string]any{"model": a.chatModel},
			},
		},
	}

	answerTemperature := overrides.SamplingTemperature()
	deferred := &Deferred{
		generator: a.generator,
		req: &openai.ChatCompletionRequest{
			Model:       a.chatModel,
			Messages:    toWireMessages(answerMessages),
			Temperature: &answerTemperature,
			MaxTokens:   answerResponseTokenLimit,
			N:           1,
			Seed:        overrides.Seed,
			Stream:      shouldStream,
		},
	}
	return extra, deferred, nil
}

func toWireMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	wire := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return wire
}
