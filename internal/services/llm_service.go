package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

const (
	ActionImprove    = "improve"
	ActionFixGrammar = "fix-grammar"
	ActionChangeTone = "change-tone"

	maxAssistInput = 5000
)

const improvePrompt = `
You are an expert resume writer. Rewrite the text below so it is clear, concise and
results oriented. Prefer strong action verbs and keep every fact that is stated.

### CONSTRAINT:
Return only the rewritten text. Keep any HTML tags that are present. Do not invent
achievements, numbers or employers.

### TEXT:
%s
`

const fixGrammarPrompt = `
You are a careful proofreader. Fix spelling, grammar and punctuation in the text below.
Do not change its meaning or wording beyond what is needed.

### CONSTRAINT:
Return only the corrected text. Keep any HTML tags that are present.

### TEXT:
%s
`

const changeTonePrompt = `
You are an expert resume writer. Rewrite the text below in a %s tone.

### CONSTRAINT:
Return only the rewritten text. Keep any HTML tags that are present. Do not invent facts.

### TEXT:
%s
`

// LLMService is the writing assistant behind the editor's rich text fields.
type LLMService struct {
	Client llms.Model
	Log    *zap.Logger
}

// NewLLMService returns a disabled assistant when enabled is false.
func NewLLMService(ctx context.Context, enabled bool, apiKey, model string, log *zap.Logger) (*LLMService, error) {
	s := &LLMService{Log: log}
	if !enabled {
		return s, nil
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	s.Client = llm
	return s, nil
}

// Improve runs one of the assistant actions on text.
func (s *LLMService) Improve(ctx context.Context, action, text, tone string) (string, error) {
	if s.Client == nil {
		return "", ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	text = truncate(text, maxAssistInput)

	var prompt string
	switch action {
	case ActionImprove:
		prompt = fmt.Sprintf(improvePrompt, text)
	case ActionFixGrammar:
		prompt = fmt.Sprintf(fixGrammarPrompt, text)
	case ActionChangeTone:
		if tone == "" {
			tone = "professional"
		}
		prompt = fmt.Sprintf(changeTonePrompt, tone, text)
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	s.Log.Debug("assistant completed", zap.String("action", action), zap.Int("input_len", len(text)))
	return cleanResponse(resp), nil
}

// cleanResponse strips the markdown fences models sometimes add.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
