package approach

import (
	"context"
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/api/openai"
	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// Run executes the pipeline and awaits the single answer completion,
// returning the full response envelope. Follow-up questions are split out of
// the answer only when the caller asked for them.
func Run(ctx context.Context, a Approach, messages []domain.Message, overrides *domain.Overrides, authClaims map[string]any, sessionState any) (*domain.ChatResponse, error) {
	if overrides == nil {
		overrides = &domain.Overrides{}
	}
	extra, deferred, err := a.RunUntilFinalCall(ctx, messages, overrides, authClaims, false)
	if err != nil {
		return nil, err
	}

	completion, err := deferred.Complete(ctx)
	if err != nil {
		return nil, err
	}

	content := ""
	role := domain.RoleAssistant
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
		if completion.Choices[0].Message.Role != "" {
			role = completion.Choices[0].Message.Role
		}
	}

	if overrides.SuggestFollowups {
		visible, questions := splitFollowups(content)
		content = visible
		extra.FollowupQuestions = questions
	}

	return &domain.ChatResponse{
		Message:      domain.Message{Role: role, Content: content},
		Context:      extra,
		SessionState: sessionState,
	}, nil
}

// RunStream executes the pipeline and returns a normalized, pull-based event
// stream. The first event carries the assistant role and the full diagnostic
// envelope; subsequent events carry content deltas. When follow-up questions
// were requested, any <<...>> markup is withheld from the content and
// re-emitted as one trailing synthetic event. If the consumer cancels the
// context, the stream is abandoned and no trailing event is produced.
func RunStream(ctx context.Context, a Approach, messages []domain.Message, overrides *domain.Overrides, authClaims map[string]any, sessionState any) (<-chan domain.StreamEvent, error) {
	if overrides == nil {
		overrides = &domain.Overrides{}
	}
	extra, deferred, err := a.RunUntilFinalCall(ctx, messages, overrides, authClaims, true)
	if err != nil {
		return nil, err
	}

	upstream, err := deferred.Stream(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)

		header := domain.StreamEvent{
			Delta:        domain.StreamDelta{Role: domain.RoleAssistant},
			Context:      extra,
			SessionState: sessionState,
		}
		if !emit(ctx, out, header) {
			go drain(upstream)
			return
		}

		splitter := followupSplitter{enabled: overrides.SuggestFollowups}
		for result := range upstream {
			if result.Err != nil {
				emit(ctx, out, domain.StreamEvent{Err: result.Err})
				return
			}
			// Some providers open the stream with an event that has an empty
			// choice list; skip those rather than treating them as errors.
			if len(result.Chunk.Choices) == 0 {
				continue
			}
			delta := result.Chunk.Choices[0].Delta

			visible, pass := splitter.feed(delta.Content)
			if !pass {
				continue
			}
			ev := domain.StreamEvent{Delta: domain.StreamDelta{Role: delta.Role, Content: visible}}
			if !emit(ctx, out, ev) {
				go drain(upstream)
				return
			}
		}

		if questions, ok := splitter.finish(); ok {
			emit(ctx, out, domain.StreamEvent{
				Delta:   domain.StreamDelta{Role: domain.RoleAssistant},
				Context: &domain.ExtraInfo{FollowupQuestions: questions},
			})
		}
	}()
	return out, nil
}

// emit sends one event unless the consumer has gone away.
func emit(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain empties an abandoned upstream channel so its producer can exit.
func drain(upstream <-chan openai.StreamResult) {
	for range upstream {
	}
}

// followupSplitter is the streaming content filter. It starts in passthrough
// and, once it sees the follow-up opening delimiter, stops emitting content
// and buffers the rest of the stream for question extraction. A disabled
// splitter passes every fragment through unchanged.
type followupSplitter struct {
	enabled   bool
	buffering bool
	buf       strings.Builder
}

// feed processes one content fragment. It returns the content to emit and
// whether an event should be emitted at all.
func (s *followupSplitter) feed(content string) (string, bool) {
	if !s.enabled {
		return content, true
	}
	if s.buffering {
		s.buf.WriteString(content)
		return "", false
	}
	before, after, found := strings.Cut(content, "<<")
	if !found {
		return content, true
	}
	s.buffering = true
	s.buf.WriteString("<<")
	s.buf.WriteString(after)
	return before, before != ""
}

// finish reports the questions parsed from the buffered tail, if anything
// was buffered.
func (s *followupSplitter) finish() ([]string, bool) {
	if s.buf.Len() == 0 {
		return nil, false
	}
	_, questions := splitFollowups(s.buf.String())
	return questions, true
}
