package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/chat"
)

func TestRenderWithScoreShowsDetails(t *testing.T) {
	m := chat.Message{
		Role:          chat.RoleUser,
		Content:       "hello",
		SpellingScore: chat.Ptr(85.0),
		OriginalText:  chat.Ptr("helo"),
	}
	b := Render(m)

	require.Equal(t, AlignRight, b.Align)
	require.Equal(t, "hello", b.Body)
	require.True(t, b.HasDetails())
	require.Equal(t, []string{"Spelling Score: 85%", "Original Text: helo"}, b.Details)
}

func TestRenderWithoutScoreOmitsDetails(t *testing.T) {
	b := Render(chat.Message{Role: chat.RoleAssistant, Content: "Say: apple", OriginalText: chat.Ptr("ignored")})

	require.Equal(t, AlignLeft, b.Align)
	require.False(t, b.HasDetails())
	require.Empty(t, b.Details)
}

func TestRenderIsIdempotent(t *testing.T) {
	m := chat.Message{Role: chat.RoleUser, Content: "x", SpellingScore: chat.Ptr(72.5)}
	require.Equal(t, Render(m), Render(m))
	require.Equal(t, []string{"Spelling Score: 72.5%"}, Render(m).Details)
}

func TestProgressOf(t *testing.T) {
	p, ok := ProgressOf(2, 5)
	require.True(t, ok)
	require.Equal(t, "3/5", p.Label)
	require.InDelta(t, 60.0, p.Percent, 1e-9)
	require.InDelta(t, 0.6, p.Ratio(), 1e-9)

	p, ok = ProgressOf(9, 5)
	require.True(t, ok)
	require.Equal(t, 100.0, p.Percent)

	p, ok = ProgressOf(-3, 5)
	require.True(t, ok)
	require.Equal(t, 0.0, p.Percent)

	_, ok = ProgressOf(0, 0)
	require.False(t, ok)
}

func TestStylerKeepsTextAndDetails(t *testing.T) {
	s := NewStyler(DefaultStyles(), false, "notty")
	out := s.String(Render(chat.Message{
		Role:          chat.RoleUser,
		Content:       "hello",
		SpellingScore: chat.Ptr(85.0),
		OriginalText:  chat.Ptr("helo"),
	}), 60)

	require.Contains(t, out, "hello")
	require.Contains(t, out, "85")
	require.Contains(t, out, "helo")
}

func TestStylerMarkdownAssistant(t *testing.T) {
	s := NewStyler(DefaultStyles(), true, "notty")
	out := s.String(Render(chat.Message{Role: chat.RoleAssistant, Content: "Say **apple**"}), 60)
	require.Contains(t, out, "apple")
	require.NotContains(t, out, "Spelling Score")
}

func TestPlain(t *testing.T) {
	out := Plain(Render(chat.Message{Role: chat.RoleUser, Content: "hi", SpellingScore: chat.Ptr(50.0)}))
	require.True(t, strings.HasPrefix(out, "user: hi"))
	require.Contains(t, out, "Spelling Score: 50%")
}
