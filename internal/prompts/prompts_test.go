package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

func TestSystemPrompt_Default(t *testing.T) {
	s := NewStore()

	got, err := s.SystemPrompt("", "")
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if strings.Contains(got, "{injected_prompt}") || strings.Contains(got, "{follow_up_questions_prompt}") {
		t.Errorf("SystemPrompt() left placeholders unresolved: %q", got)
	}
	if !strings.Contains(got, "customer support assistant") {
		t.Errorf("SystemPrompt() did not use the default template: %q", got)
	}
}

func TestSystemPrompt_DefaultWithDirective(t *testing.T) {
	s := NewStore()

	got, err := s.SystemPrompt("", FollowupDirective)
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "double angle brackets") {
		t.Errorf("SystemPrompt() missing follow-up directive: %q", got)
	}
}

func TestSystemPrompt_Continuation(t *testing.T) {
	s := NewStore()

	// A newline is always appended to the injected remainder, whether or not
	// the override already ends with one.
	tests := []struct {
		name     string
		override string
		want     string
	}{
		{name: "with trailing newline", override: ">>>Answer only in French.\n", want: "Answer only in French.\n\n"},
		{name: "without trailing newline", override: ">>>Answer only in French.", want: "Answer only in French.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SystemPrompt(tt.override, "")
			if err != nil {
				t.Fatalf("SystemPrompt() error = %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("SystemPrompt() did not inject continuation: %q", got)
			}
			if !strings.Contains(got, "customer support assistant") {
				t.Errorf("SystemPrompt() dropped the default template: %q", got)
			}
		})
	}
}

func TestSystemPrompt_FullReplacement(t *testing.T) {
	s := NewStore()

	got, err := s.SystemPrompt("You are a pirate. {follow_up_questions_prompt}", "Ask more!")
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if got != "You are a pirate. Ask more!" {
		t.Errorf("SystemPrompt() = %q", got)
	}
}

func TestSystemPrompt_ReplacementWithoutPlaceholders(t *testing.T) {
	s := NewStore()

	// A replacement template that ignores the directive is tolerated.
	got, err := s.SystemPrompt("You are a pirate.", "Ask more!")
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if got != "You are a pirate." {
		t.Errorf("SystemPrompt() = %q", got)
	}
}

func TestSystemPrompt_UnknownPlaceholder(t *testing.T) {
	s := NewStore()

	_, err := s.SystemPrompt("Hello {mystery_value}", "")
	if err == nil {
		t.Fatal("SystemPrompt() expected error for unknown placeholder")
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("SystemPrompt() error type = %T, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeTemplate {
		t.Errorf("error type = %q, want %q", apiErr.Type, domain.ErrorTypeTemplate)
	}
	if apiErr.Param != "mystery_value" {
		t.Errorf("error param = %q, want mystery_value", apiErr.Param)
	}
}

func TestSystemPrompt_CustomDeploymentTemplate(t *testing.T) {
	s := NewStore(WithSystemTemplate("Event FAQ assistant.\n{follow_up_questions_prompt}\n{injected_prompt}"))

	got, err := s.SystemPrompt(">>>Stick to this year's schedule.", "")
	if err != nil {
		t.Fatalf("SystemPrompt() error = %v", err)
	}
	if !strings.Contains(got, "Event FAQ assistant.") {
		t.Errorf("SystemPrompt() did not use deployment template: %q", got)
	}
	if !strings.Contains(got, "Stick to this year's schedule.\n") {
		t.Errorf("SystemPrompt() did not inject override: %q", got)
	}
}

func TestFewShots_AlternatingRoles(t *testing.T) {
	s := NewStore()

	shots := s.FewShots()
	if len(shots)%2 != 0 {
		t.Fatalf("FewShots() returned %d messages, want an even number", len(shots))
	}
	for i, shot := range shots {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		if shot.Role != want {
			t.Errorf("FewShots()[%d].Role = %q, want %q", i, shot.Role, want)
		}
	}
}
