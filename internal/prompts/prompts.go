// Package prompts owns the static prompt templates used by the chat pipeline:
// the query-generation instructions with their few-shot examples, the default
// answer-generation system message, and the follow-up questions directive.
package prompts

import (
	"regexp"
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// NoResponse is the reserved model reply meaning "no better search query than
// the user's original question".
const NoResponse = "0"

// ContinuationMarker prefixes a prompt override that should be appended to
// the default system template instead of replacing it.
const ContinuationMarker = ">>>"

// QueryTemplate instructs the model to turn the conversation into a search
// query for the knowledge base index.
const QueryTemplate = `Below is a history of the conversation so far, and a new question asked by the user that needs to be answered by searching in a knowledge base.
You have access to a search index with documents about the company's services, policies, and support procedures.
Generate a search query based on the conversation and the new question.
Do not include cited source filenames and document names such as info.txt or doc.pdf in the search query terms.
Do not include any text inside [] or <<>> in the search query terms.
Do not include any special characters like '+'.
If the question is not in English, translate the question to English before generating the search query.
If you cannot generate a search query, return just the number 0.
`

// FollowupDirective is substituted into the system template when the caller
// asks for follow-up question suggestions.
const FollowupDirective = `Generate 3 very brief follow-up questions that the user would likely ask next.
Enclose the follow-up questions in double angle brackets. Example:
<<What are the hours of operation?>>
<<How do I reset my account password?>>
<<Is there a mobile app available?>>
Do not repeat questions that have already been asked.
Make sure the last question ends with ">>".
`

// defaultSystemTemplate is the built-in answer-generation system message. A
// deployment may swap it out wholesale through configuration; a single
// request may replace or extend it through the prompt_template override.
const defaultSystemTemplate = `You are a customer support assistant. Help users with their questions about schedules, tickets and passes, refunds, the mobile app, and network connectivity at our terminals.
Answer ONLY with the facts listed in the list of sources below. If there isn't enough information below, say you don't know and offer to escalate to the support team.
Do not generate answers that don't use the sources below.
Be brief in your answers. If asking a clarifying question to the user would help, ask the question.
Each source has a name followed by colon and the actual information, always include the source name for each fact you use in the response. Use square brackets to reference the source, for example [info1.txt]. Don't combine sources, list each source separately, for example [info1.txt][info2.pdf].
{follow_up_questions_prompt}
{injected_prompt}
`

// fewShots primes the query-generation step with example rewrites.
var fewShots = []domain.Message{
	{Role: domain.RoleUser, Content: "Tell me more about the Ferry Service"},
	{Role: domain.RoleAssistant, Content: "Summarize Ferry schedule"},
	{Role: domain.RoleUser, Content: "What is the quickest way to get from Hamilton to Dockyard?"},
	{Role: domain.RoleAssistant, Content: "Quickest trip from Hamilton to Dockyard by ferry or bus"},
}

// placeholderPattern matches {identifier} substitution points in templates.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Store resolves prompt templates for the pipeline. The zero value uses the
// built-in system template.
type Store struct {
	systemTemplate string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSystemTemplate replaces the built-in answer-generation system template
// for the whole deployment. The template may reference {injected_prompt} and
// {follow_up_questions_prompt}.
func WithSystemTemplate(template string) StoreOption {
	return func(s *Store) {
		if template != "" {
			s.systemTemplate = template
		}
	}
}

// NewStore creates a prompt template store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{systemTemplate: defaultSystemTemplate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SystemTemplate returns the deployment's answer-generation system template.
func (s *Store) SystemTemplate() string {
	return s.systemTemplate
}

// FewShots returns the few-shot examples for the query-generation step.
// Callers must not mutate the returned slice.
func (s *Store) FewShots() []domain.Message {
	return fewShots
}

// SystemPrompt resolves the answer-generation system message. An empty
// override uses the deployment template with no injected text. An override
// beginning with ">>>" keeps the deployment template and injects the
// remainder. Any other override replaces the template entirely, with only the
// follow-up directive substituted.
func (s *Store) SystemPrompt(override, followupDirective string) (string, error) {
	switch {
	case override == "":
		return substitute(s.systemTemplate, map[string]string{
			"injected_prompt":            "",
			"follow_up_questions_prompt": followupDirective,
		})
	case strings.HasPrefix(override, ContinuationMarker):
		// The remainder always gains a trailing newline, even when the caller
		// supplied one, so the injected text never runs into the template line
		// that follows the placeholder.
		return substitute(s.systemTemplate, map[string]string{
			"injected_prompt":            strings.TrimPrefix(override, ContinuationMarker) + "\n",
			"follow_up_questions_prompt": followupDirective,
		})
	default:
		return substitute(override, map[string]string{
			"follow_up_questions_prompt": followupDirective,
		})
	}
}

// substitute replaces {name} placeholders with their values. A placeholder
// with no value is an error surfaced to the caller, since it means a
// caller-supplied template references something the store does not define.
func substitute(template string, values map[string]string) (string, error) {
	var unknown string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		value, ok := values[name]
		if !ok {
			if unknown == "" {
				unknown = name
			}
			return m
		}
		return value
	})
	if unknown != "" {
		return "", domain.NewTemplateError(unknown)
	}
	return out, nil
}
