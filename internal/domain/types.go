// Package domain provides the canonical request/response types shared by the
// retrieval-augmented chat pipeline and its HTTP frontdoor.
package domain

import "encoding/json"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	nonText bool
}

// UnmarshalJSON decodes a message, tolerating structured (non-string)
// content. Structured content is not usable by this pipeline; decoding keeps
// it so the pipeline can reject it with a typed error before any remote call
// instead of failing with a bare decode error at the transport.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.nonText = false
	m.Content = ""
	if len(wire.Content) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(wire.Content, &text); err != nil {
		m.nonText = true
		return nil
	}
	m.Content = text
	return nil
}

// MarshalJSON encodes the message's role and content.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Content})
}

// IsText reports whether the message content is plain text.
func (m *Message) IsText() bool {
	return !m.nonText
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Retrieval modes accepted in Overrides.RetrievalMode. An empty value means
// both text and vector search are used.
const (
	RetrievalModeText    = "text"
	RetrievalModeVectors = "vectors"
	RetrievalModeHybrid  = "hybrid"
)

// Overrides carries per-request tuning options. Every field is optional;
// unset fields fall back to the documented defaults and unknown JSON keys are
// dropped during decoding rather than rejected.
type Overrides struct {
	RetrievalMode        string   `json:"retrieval_mode,omitempty"`
	SemanticRanker       bool     `json:"semantic_ranker,omitempty"`
	SemanticCaptions     bool     `json:"semantic_captions,omitempty"`
	Top                  *int     `json:"top,omitempty"`
	MinimumSearchScore   float64  `json:"minimum_search_score,omitempty"`
	MinimumRerankerScore float64  `json:"minimum_reranker_score,omitempty"`
	Seed                 *int     `json:"seed,omitempty"`
	Temperature          *float32 `json:"temperature,omitempty"`
	PromptTemplate       string   `json:"prompt_template,omitempty"`
	SuggestFollowups     bool     `json:"suggest_followup_questions,omitempty"`
	ExcludeCategory      string   `json:"exclude_category,omitempty"`
}

const (
	defaultTop         = 3
	defaultTemperature = float32(0.3)
)

// UseTextSearch reports whether full-text search should be issued.
func (o *Overrides) UseTextSearch() bool {
	switch o.RetrievalMode {
	case RetrievalModeText, RetrievalModeHybrid, "":
		return true
	}
	return false
}

// UseVectorSearch reports whether a vector query should be issued.
func (o *Overrides) UseVectorSearch() bool {
	switch o.RetrievalMode {
	case RetrievalModeVectors, RetrievalModeHybrid, "":
		return true
	}
	return false
}

// ResultCount returns the requested result count, defaulting to 3.
func (o *Overrides) ResultCount() int {
	if o.Top != nil && *o.Top > 0 {
		return *o.Top
	}
	return defaultTop
}

// SamplingTemperature returns the answer-generation temperature, defaulting to 0.3.
func (o *Overrides) SamplingTemperature() float32 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return defaultTemperature
}

// ThoughtStep is one diagnostic trace entry describing a pipeline stage's
// inputs and parameters. It is never consulted by control flow.
type ThoughtStep struct {
	Title   string         `json:"title"`
	Content any            `json:"content"`
	Props   map[string]any `json:"props,omitempty"`
}

// DataPoints holds the flattened source passages the answer was grounded on.
type DataPoints struct {
	Text []string `json:"text"`
}

// ExtraInfo is the diagnostic envelope attached to every response. It is
// built once per request and discarded once the response is delivered.
type ExtraInfo struct {
	DataPoints DataPoints    `json:"data_points"`
	Thoughts   []ThoughtStep `json:"thoughts"`
	// FollowupQuestions is populated by the finalizers when the caller asked
	// for follow-up suggestions.
	FollowupQuestions []string `json:"followup_questions,omitempty"`
}

// ChatResponse is the non-streaming response envelope.
type ChatResponse struct {
	Message      Message    `json:"message"`
	Context      *ExtraInfo `json:"context"`
	SessionState any        `json:"session_state"`
}

// StreamDelta is the incremental content portion of a stream event.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamEvent is one chunk of a streaming response. The first event of a
// stream carries the assistant role and the full ExtraInfo; subsequent events
// carry content deltas only. A trailing synthetic event may carry nothing but
// extracted follow-up questions.
type StreamEvent struct {
	Delta        StreamDelta `json:"delta"`
	Context      *ExtraInfo  `json:"context,omitempty"`
	SessionState any         `json:"session_state,omitempty"`

	// Err reports an upstream failure observed mid-stream. It is not part of
	// the wire shape; transports decide how to surface it.
	Err error `json:"-"`
}
