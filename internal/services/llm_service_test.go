package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// stubModel answers every prompt with reply and records the last prompt.
type stubModel struct {
	reply  string
	prompt string
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompt = text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	m.prompt = prompt
	return m.reply, nil
}

func TestImprove(t *testing.T) {
	ctx := context.Background()

	t.Run("should be disabled without a model", func(t *testing.T) {
		s, err := NewLLMService(ctx, false, "", "", zap.NewNop())
		require.NoError(t, err)
		_, err = s.Improve(ctx, ActionImprove, "text", "")
		assert.ErrorIs(t, err, ErrDisabled)
	})

	t.Run("should strip code fences from the answer", func(t *testing.T) {
		model := &stubModel{reply: "```html\n<p>Led a team of five.</p>\n```"}
		s := &LLMService{Client: model, Log: zap.NewNop()}

		out, err := s.Improve(ctx, ActionImprove, "<p>i was leading team</p>", "")
		require.NoError(t, err)
		assert.Equal(t, "<p>Led a team of five.</p>", out)
		assert.Contains(t, model.prompt, "i was leading team")
	})

	t.Run("should pass the tone", func(t *testing.T) {
		model := &stubModel{reply: "ok"}
		s := &LLMService{Client: model, Log: zap.NewNop()}

		_, err := s.Improve(ctx, ActionChangeTone, "text", "confident")
		require.NoError(t, err)
		assert.True(t, strings.Contains(model.prompt, "confident tone"))
	})

	t.Run("should reject unknown actions and empty text", func(t *testing.T) {
		s := &LLMService{Client: &stubModel{}, Log: zap.NewNop()}
		_, err := s.Improve(ctx, "summarize", "text", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.Improve(ctx, ActionFixGrammar, "  ", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("should keep short text", func(t *testing.T) {
		assert.Equal(t, "Zoë", truncate("Zoë", 4))
	})

	t.Run("should not split a multibyte rune", func(t *testing.T) {
		assert.Equal(t, "Zo", truncate("Zoë", 3))
		assert.Equal(t, "", truncate("日本", 2))
		assert.Equal(t, "日", truncate("日本", 5))
	})

	t.Run("should send valid text to the model when the input is cut", func(t *testing.T) {
		model := &stubModel{reply: "ok"}
		s := &LLMService{Client: model, Log: zap.NewNop()}
		text := "a" + strings.Repeat("é", maxAssistInput/2)

		_, err := s.Improve(context.Background(), ActionImprove, text, "")
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(model.prompt))
		assert.Contains(t, model.prompt, "a"+strings.Repeat("é", maxAssistInput/2-1))
		assert.NotContains(t, model.prompt, text)
	})
}
