// Package mentor generates Socratic coding-mentor replies through the
// Gemini API.
package mentor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/voicecode-ai/mentor/pkg/core"
)

const (
	defaultModel    = "gemini-2.5-flash"
	maxOutputTokens = 500
	maxCodeChars    = 4000
)

// Reply is one mentor answer with usage accounting.
type Reply struct {
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// PromptInput is everything the prompt builder needs.
type PromptInput struct {
	Message   string
	Code      string
	ProblemID string
	Language  string
	HintLevel int
	// History is a rendered summary of recent conversation turns.
	History string
}

// Service talks to Gemini. Create with New; a nil Service rejects calls
// with a service-unavailable error so the chat endpoint can degrade when
// no API key is configured.
type Service struct {
	client *genai.Client
	model  string
}

// New creates a mentor service. model falls back to gemini-2.5-flash.
func New(ctx context.Context, apiKey, model string) (*Service, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("mentor: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("mentor: create client: %w", err)
	}
	return &Service{client: client, model: model}, nil
}

// Model returns the configured model name.
func (s *Service) Model() string {
	if s == nil {
		return defaultModel
	}
	return s.model
}

// GenerateReply builds the mentor prompt and calls the model.
func (s *Service) GenerateReply(ctx context.Context, in PromptInput) (*Reply, error) {
	if s == nil || s.client == nil {
		return nil, core.NewUnavailableError("AI service is not configured")
	}

	prompt := BuildPrompt(in)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopP:            genai.Ptr[float32](0.8),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return nil, core.NewAIServiceError("gemini", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, core.NewAIServiceError("gemini", fmt.Errorf("empty response"))
	}

	tokens := estimateTokens(text)
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return &Reply{Response: text, TokensUsed: tokens, Model: s.model}, nil
}

// estimateTokens is the fallback when the API reports no usage: roughly
// four characters per token.
func estimateTokens(text string) int {
	return len(text) / 4
}

var hintGuidance = map[int]string{
	0: "Ask guiding questions only. Never reveal the approach or any code.",
	1: "Give gentle nudges toward the right direction. No code.",
	2: "Give concrete hints about the technique and data structures. Short illustrative fragments are fine, never a full solution.",
	3: "Give detailed guidance, pseudocode allowed, but never a complete working solution.",
}

// BuildPrompt renders the Socratic mentor prompt for one chat turn.
func BuildPrompt(in PromptInput) string {
	guidance, ok := hintGuidance[in.HintLevel]
	if !ok {
		guidance = hintGuidance[0]
	}

	var b strings.Builder
	b.WriteString("You are a Socratic coding mentor helping a student practice algorithm problems.\n")
	b.WriteString("You never hand out complete solutions; you help the student reach the answer themselves.\n")
	fmt.Fprintf(&b, "Hint level %d: %s\n\n", in.HintLevel, guidance)

	if in.ProblemID != "" {
		fmt.Fprintf(&b, "Problem: %s\n", in.ProblemID)
	}
	if in.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", in.Language)
	}
	if code := strings.TrimSpace(in.Code); code != "" {
		if runes := []rune(code); len(runes) > maxCodeChars {
			code = string(runes[:maxCodeChars])
		}
		fmt.Fprintf(&b, "\nThe student's current code:\n```\n%s\n```\n", code)
	}
	if in.History != "" {
		fmt.Fprintf(&b, "\nRecent conversation:\n%s\n", in.History)
	}
	fmt.Fprintf(&b, "\nStudent: %s\n", in.Message)
	return b.String()
}

// LooksLikeFullSolution flags replies carrying a large fenced code block,
// which the mentor is never supposed to produce.
func LooksLikeFullSolution(reply string) bool {
	parts := strings.Split(reply, "```")
	// Odd indices are inside fences.
	for i := 1; i < len(parts); i += 2 {
		if strings.Count(strings.TrimSpace(parts[i]), "\n") >= 8 {
			return true
		}
	}
	return false
}
