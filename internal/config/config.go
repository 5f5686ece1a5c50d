// Package config loads the gateway configuration from an optional YAML file
// overlaid with RAGCHAT_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	OpenAI  OpenAIConfig  `koanf:"openai"`
	Search  SearchConfig  `koanf:"search"`
	Auth    AuthConfig    `koanf:"auth"`
	Prompts PromptsConfig `koanf:"prompts"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey              string `koanf:"api_key"`
	BaseURL             string `koanf:"base_url"`
	ChatModel           string `koanf:"chat_model"`
	EmbeddingModel      string `koanf:"embedding_model"`
	EmbeddingDimensions int    `koanf:"embedding_dimensions"`
}

type SearchConfig struct {
	Endpoint              string `koanf:"endpoint"`
	Index                 string `koanf:"index"`
	APIKey                string `koanf:"api_key"`
	APIVersion            string `koanf:"api_version"`
	SemanticConfiguration string `koanf:"semantic_configuration"`
	VectorFields          string `koanf:"vector_fields"`
}

type AuthConfig struct {
	// APIKeyHashes are SHA-256 hex hashes of accepted bearer keys. Empty
	// means the HTTP surface is open.
	APIKeyHashes []string `koanf:"api_key_hashes"`

	// UseAccessControl enables document-level security filters built from
	// the caller's claims.
	UseAccessControl bool `koanf:"use_access_control"`
}

type PromptsConfig struct {
	// SystemTemplate replaces the built-in answer-generation system template
	// for the whole deployment.
	SystemTemplate string `koanf:"system_template"`
}

// Load reads configuration from the given YAML file (skipped when the path
// is empty or the file does not exist) and from RAGCHAT_ environment
// variables, with "__" separating nesting levels, e.g.
// RAGCHAT_OPENAI__API_KEY -> openai.api_key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("RAGCHAT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "RAGCHAT_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("openai.chat_model") {
		k.Set("openai.chat_model", "gpt-4o-mini")
	}
	if !k.Exists("openai.embedding_model") {
		k.Set("openai.embedding_model", "text-embedding-3-small")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
