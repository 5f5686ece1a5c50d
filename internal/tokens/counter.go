// Package tokens provides tiktoken-backed token accounting and the message
// budgeter that trims chat prompts to a model's context window.
package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// Counter provides token counts for OpenAI-family models using tiktoken.
type Counter struct {
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewCounter creates a token counter.
func NewCounter() *Counter {
	return &Counter{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// getCodec returns the tokenizer codec for a model.
func (c *Counter) getCodec(model string) (tokenizer.Codec, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model)))
	if err == nil {
		return codec, nil
	}

	// Fall back to encoding based on model prefix
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err = tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model names to encoding names for fallback.
//
// Encoding reference:
// - O200kBase: GPT-4.1, GPT-4o, o-series and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo, text-embedding models
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-41"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "gpt-3.5"), strings.HasPrefix(model, "gpt-35"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		// Newer and unknown models most likely use o200k_base
		return tokenizer.O200kBase
	}
}

// Token overhead per message for chat models, per OpenAI's accounting:
// 3 tokens per message plus 1 for the role, and 3 tokens of assistant
// priming at the end of the prompt.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPriming    = 3
	tokensPerTool    = 7
)

// CountText counts tokens for a plain text string.
func (c *Counter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountMessage counts tokens for a single chat message including the
// per-message overhead.
func (c *Counter) CountMessage(model string, msg domain.Message) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	total := tokensPerMessage + tokensPerRole
	ids, _, _ := codec.Encode(msg.Content)
	total += len(ids)
	return total, nil
}

// Tool describes a declared function tool for token accounting.
type Tool struct {
	Name        string
	Description string
	Parameters  any
}

// CountTools counts tokens consumed by tool declarations.
func (c *Counter) CountTools(model string, tools []Tool) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, tool := range tools {
		ids, _, _ := codec.Encode(tool.Name)
		total += len(ids)
		ids, _, _ = codec.Encode(tool.Description)
		total += len(ids)
		if tool.Parameters != nil {
			paramBytes, _ := json.Marshal(tool.Parameters)
			ids, _, _ := codec.Encode(string(paramBytes))
			total += len(ids)
		}
		total += tokensPerTool
	}
	return total, nil
}
