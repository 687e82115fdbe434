package mentor

import (
	"context"
	"strings"
	"testing"

	"github.com/voicecode-ai/mentor/pkg/core"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Message:   "why does my loop never end?",
		Code:      "while True:\n    pass",
		ProblemID: "two-sum",
		Language:  "python",
		HintLevel: 2,
		History:   "user: hello\nassistant: What are you working on?",
	})

	for _, want := range []string{
		"Socratic coding mentor",
		"Hint level 2",
		"Problem: two-sum",
		"Language: python",
		"while True:",
		"assistant: What are you working on?",
		"Student: why does my loop never end?",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptClampsHintLevel(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Message: "hi", HintLevel: 99})
	if !strings.Contains(prompt, "guiding questions only") {
		t.Fatal("out-of-range hint level did not fall back to level 0 guidance")
	}
}

func TestBuildPromptTruncatesCode(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Message: "hi", Code: strings.Repeat("x", 10000)})
	if len(prompt) > 6000 {
		t.Fatalf("prompt is %d chars, code not truncated", len(prompt))
	}
}

func TestNilServiceDegrades(t *testing.T) {
	var s *Service
	_, err := s.GenerateReply(context.Background(), PromptInput{Message: "hi"})
	apiErr, ok := err.(*core.Error)
	if !ok || apiErr.Type != core.ErrUnavailable {
		t.Fatalf("err = %v, want service_unavailable", err)
	}
	if s.Model() != "gemini-2.5-flash" {
		t.Fatalf("nil service model = %q", s.Model())
	}
}

func TestLooksLikeFullSolution(t *testing.T) {
	long := "```python\n" + strings.Repeat("line\n", 10) + "```"
	if !LooksLikeFullSolution(long) {
		t.Fatal("long code block not flagged")
	}
	short := "Try this pattern:\n```\nfor i, v := range xs {\n}\n```"
	if LooksLikeFullSolution(short) {
		t.Fatal("short fragment flagged")
	}
	if LooksLikeFullSolution("no code at all") {
		t.Fatal("plain text flagged")
	}
}
