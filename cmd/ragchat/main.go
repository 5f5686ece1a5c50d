package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/api/search"
	"github.com/tjfontaine/ragchat-gateway/internal/approach"
	"github.com/tjfontaine/ragchat-gateway/internal/auth"
	"github.com/tjfontaine/ragchat-gateway/internal/config"
	chatfrontdoor "github.com/tjfontaine/ragchat-gateway/internal/frontdoor/chat"
	"github.com/tjfontaine/ragchat-gateway/internal/prompts"
	"github.com/tjfontaine/ragchat-gateway/internal/server"
	"github.com/tjfontaine/ragchat-gateway/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("ragchat-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	var openaiOpts []openai.ClientOption
	if cfg.OpenAI.BaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	generator := openai.NewClient(cfg.OpenAI.APIKey, openaiOpts...)

	var searchOpts []search.ClientOption
	if cfg.Search.APIVersion != "" {
		searchOpts = append(searchOpts, search.WithAPIVersion(cfg.Search.APIVersion))
	}
	if cfg.Search.SemanticConfiguration != "" {
		searchOpts = append(searchOpts, search.WithSemanticConfiguration(cfg.Search.SemanticConfiguration))
	}
	if cfg.Search.VectorFields != "" {
		searchOpts = append(searchOpts, search.WithVectorFields(cfg.Search.VectorFields))
	}
	retriever := search.NewClient(cfg.Search.Endpoint, cfg.Search.Index, cfg.Search.APIKey, searchOpts...)

	pipeline := approach.NewChatReadRetrieveRead(approach.Config{
		Generator:           generator,
		Retriever:           retriever,
		Filters:             auth.NewFilterBuilder(cfg.Auth.UseAccessControl),
		Prompts:             prompts.NewStore(prompts.WithSystemTemplate(cfg.Prompts.SystemTemplate)),
		ChatModel:           cfg.OpenAI.ChatModel,
		EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: cfg.OpenAI.EmbeddingDimensions,
		Logger:              logger,
	})

	handler := chatfrontdoor.NewHandler(pipeline, logger)

	var authenticator *auth.Authenticator
	if len(cfg.Auth.APIKeyHashes) > 0 {
		authenticator = auth.NewAuthenticator(cfg.Auth.APIKeyHashes)
	}

	srv := server.New(cfg.Server.Port, logger, authenticator)
	srv.Router.Post("/chat", handler.HandleChat)
	srv.Router.Post("/chat/stream", handler.HandleChatStream)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
