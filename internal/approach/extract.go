package approach

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/prompts"
)

// searchToolName is the function tool the query-generation step may call to
// hand back a structured search query.
const searchToolName = "search_sources"

// followupPattern matches one <<question>> block.
var followupPattern = regexp.MustCompile(`<<([^>]+)>>`)

// searchQueryFromCompletion decides which string to use as the retrieval
// query. A search_sources tool call with a non-sentinel search_query argument
// wins; otherwise trimmed free text is used unless it equals the sentinel;
// otherwise the user's original question is reused verbatim.
func searchQueryFromCompletion(completion *openai.ChatCompletionResponse, userQuery string) string {
	if len(completion.Choices) == 0 {
		return userQuery
	}
	message := completion.Choices[0].Message

	if len(message.ToolCalls) > 0 {
		for _, call := range message.ToolCalls {
			if call.Type != "function" {
				continue
			}
			if call.Function.Name != searchToolName {
				continue
			}
			var args struct {
				SearchQuery string `json:"search_query"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				continue
			}
			if args.SearchQuery != "" && args.SearchQuery != prompts.NoResponse {
				return args.SearchQuery
			}
		}
	} else if message.Content != "" {
		if trimmed := strings.TrimSpace(message.Content); trimmed != prompts.NoResponse {
			return trimmed
		}
	}
	return userQuery
}

// splitFollowups separates the visible answer from embedded <<question>>
// blocks. The visible content is everything before the first "<<"; each
// well-formed pair contributes one question, in order of appearance. An
// opening delimiter with no matching close truncates the content and yields
// no question.
func splitFollowups(content string) (string, []string) {
	var questions []string
	for _, match := range followupPattern.FindAllStringSubmatch(content, -1) {
		questions = append(questions, match[1])
	}
	visible, _, _ := strings.Cut(content, "<<")
	return visible, questions
}
