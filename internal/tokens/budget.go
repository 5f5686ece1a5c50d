package tokens

import (
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// contextLimits maps known model prefixes to their context window sizes,
// slightly under the published limits to leave headroom for accounting drift.
var contextLimits = []struct {
	prefix string
	limit  int
}{
	{"gpt-4.1", 128000},
	{"gpt-41", 128000},
	{"gpt-4o", 128000},
	{"gpt-4-32k", 32000},
	{"gpt-4", 8100},
	{"gpt-3.5-turbo-16k", 16000},
	{"gpt-35-turbo-16k", 16000},
	{"gpt-3.5", 4000},
	{"gpt-35", 4000},
	{"o1", 128000},
	{"o3", 128000},
	{"o4", 128000},
}

// defaultContextLimit is the conservative fallback for unknown models.
const defaultContextLimit = 4000

// ContextLimit returns the context window size for a model.
func ContextLimit(model string) int {
	model = strings.ToLower(model)
	for _, entry := range contextLimits {
		if strings.HasPrefix(model, entry.prefix) {
			return entry.limit
		}
	}
	return defaultContextLimit
}

// BuildMessages assembles a chat prompt that fits within maxTokens: the
// system message, the few-shot examples, as many of the most recent past
// messages as the budget allows, and a final user turn with newUserContent.
// The system message, few-shots, tool declarations and the new user turn are
// always kept; past messages are dropped earliest-first to make room.
func (c *Counter) BuildMessages(
	model string,
	system string,
	fewShots []domain.Message,
	tools []Tool,
	pastMessages []domain.Message,
	newUserContent string,
	maxTokens int,
) ([]domain.Message, error) {
	systemMessage := domain.Message{Role: domain.RoleSystem, Content: system}
	newUserMessage := domain.Message{Role: domain.RoleUser, Content: newUserContent}

	used := tokensPriming

	n, err := c.CountMessage(model, systemMessage)
	if err != nil {
		return nil, err
	}
	used += n

	for _, shot := range fewShots {
		n, err := c.CountMessage(model, shot)
		if err != nil {
			return nil, err
		}
		used += n
	}

	n, err = c.CountTools(model, tools)
	if err != nil {
		return nil, err
	}
	used += n

	n, err = c.CountMessage(model, newUserMessage)
	if err != nil {
		return nil, err
	}
	used += n

	// Walk past messages newest-first, keeping those that fit.
	var kept []domain.Message
	for i := len(pastMessages) - 1; i >= 0; i-- {
		n, err := c.CountMessage(model, pastMessages[i])
		if err != nil {
			return nil, err
		}
		if used+n > maxTokens {
			break
		}
		used += n
		kept = append(kept, pastMessages[i])
	}

	messages := make([]domain.Message, 0, 2+len(fewShots)+len(kept))
	messages = append(messages, systemMessage)
	messages = append(messages, fewShots...)
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, kept[i])
	}
	messages = append(messages, newUserMessage)
	return messages, nil
}
