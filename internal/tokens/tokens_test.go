package tokens

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

func TestContextLimit(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o-mini", 128000},
		{"gpt-4o", 128000},
		{"gpt-4.1", 128000},
		{"GPT-4o", 128000},
		{"gpt-4-32k", 32000},
		{"gpt-4", 8100},
		{"gpt-4-0613", 8100},
		{"gpt-3.5-turbo-16k", 16000},
		{"gpt-35-turbo-16k", 16000},
		{"gpt-3.5-turbo", 4000},
		{"o1-mini", 128000},
		{"o3", 128000},
		{"some-unknown-model", 4000},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ContextLimit(tt.model); got != tt.want {
				t.Errorf("ContextLimit(%q) = %d, want %d", tt.model, got, tt.want)
			}
		})
	}
}

func TestCountText(t *testing.T) {
	c := NewCounter()

	n, err := c.CountText("gpt-4o-mini", "hello world")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n <= 0 {
		t.Errorf("CountText() = %d, want positive", n)
	}

	empty, err := c.CountText("gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if empty != 0 {
		t.Errorf("CountText(empty) = %d, want 0", empty)
	}
}

func TestCountMessageIncludesOverhead(t *testing.T) {
	c := NewCounter()

	text, err := c.CountText("gpt-4o-mini", "hello world")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	msg, err := c.CountMessage("gpt-4o-mini", domain.Message{Role: domain.RoleUser, Content: "hello world"})
	if err != nil {
		t.Fatalf("CountMessage() error = %v", err)
	}
	if want := text + tokensPerMessage + tokensPerRole; msg != want {
		t.Errorf("CountMessage() = %d, want %d", msg, want)
	}
}

func TestCountMessageUnknownModelFallsBack(t *testing.T) {
	c := NewCounter()

	n, err := c.CountMessage("future-model-x", domain.Message{Role: domain.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("CountMessage() error = %v", err)
	}
	if n <= tokensPerMessage+tokensPerRole {
		t.Errorf("CountMessage() = %d, want overhead plus content tokens", n)
	}
}

func TestCountTools(t *testing.T) {
	c := NewCounter()

	none, err := c.CountTools("gpt-4o-mini", nil)
	if err != nil {
		t.Fatalf("CountTools() error = %v", err)
	}
	if none != 0 {
		t.Errorf("CountTools(nil) = %d, want 0", none)
	}

	one, err := c.CountTools("gpt-4o-mini", []Tool{{
		Name:        "search_sources",
		Description: "Retrieve sources from the knowledge base",
		Parameters:  map[string]any{"type": "object"},
	}})
	if err != nil {
		t.Fatalf("CountTools() error = %v", err)
	}
	if one <= tokensPerTool {
		t.Errorf("CountTools() = %d, want overhead plus declaration tokens", one)
	}
}

func TestBuildMessages_AllFit(t *testing.T) {
	c := NewCounter()

	fewShots := []domain.Message{
		{Role: domain.RoleUser, Content: "example question"},
		{Role: domain.RoleAssistant, Content: "example answer"},
	}
	past := []domain.Message{
		{Role: domain.RoleUser, Content: "earlier question"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
	}

	got, err := c.BuildMessages("gpt-4o-mini", "You are helpful.", fewShots, nil, past, "new question", 4000)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}

	wantContents := []string{
		"You are helpful.",
		"example question",
		"example answer",
		"earlier question",
		"earlier answer",
		"new question",
	}
	if len(got) != len(wantContents) {
		t.Fatalf("BuildMessages() returned %d messages, want %d", len(got), len(wantContents))
	}
	for i, want := range wantContents {
		if got[i].Content != want {
			t.Errorf("messages[%d].Content = %q, want %q", i, got[i].Content, want)
		}
	}
	if got[0].Role != domain.RoleSystem {
		t.Errorf("messages[0].Role = %q, want system", got[0].Role)
	}
	if got[len(got)-1].Role != domain.RoleUser {
		t.Errorf("last role = %q, want user", got[len(got)-1].Role)
	}
}

func TestBuildMessages_DropsEarliestPastMessages(t *testing.T) {
	c := NewCounter()

	filler := strings.Repeat("alpha beta gamma delta ", 50)
	var past []domain.Message
	for i := 0; i < 10; i++ {
		past = append(past, domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("q%d %s", i, filler)})
		past = append(past, domain.Message{Role: domain.RoleAssistant, Content: fmt.Sprintf("a%d %s", i, filler)})
	}

	got, err := c.BuildMessages("gpt-4o-mini", "system", nil, nil, past, "final", 1000)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}

	if len(got) >= len(past)+2 {
		t.Fatalf("BuildMessages() kept %d messages, want trimming", len(got))
	}
	// System and the new user turn always survive.
	if got[0].Content != "system" || got[len(got)-1].Content != "final" {
		t.Errorf("anchors = %q ... %q", got[0].Content, got[len(got)-1].Content)
	}
	// The kept past messages are a suffix of the history, in original order.
	kept := got[1 : len(got)-1]
	tail := past[len(past)-len(kept):]
	for i := range kept {
		if kept[i].Content != tail[i].Content {
			t.Errorf("kept[%d] = %q, want most recent history in order", i, kept[i].Content[:8])
		}
	}
	if len(kept) > 0 && strings.HasPrefix(kept[0].Content, "q0") {
		t.Error("earliest past message survived a tight budget")
	}
}

func TestBuildMessages_KeepsAnchorsUnderTinyBudget(t *testing.T) {
	c := NewCounter()

	past := []domain.Message{
		{Role: domain.RoleUser, Content: "old turn"},
	}
	got, err := c.BuildMessages("gpt-4o-mini", "system", nil, nil, past, "final", 1)
	if err != nil {
		t.Fatalf("BuildMessages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("BuildMessages() = %d messages, want system and user only", len(got))
	}
	if got[0].Content != "system" || got[1].Content != "final" {
		t.Errorf("messages = %+v", got)
	}
}
