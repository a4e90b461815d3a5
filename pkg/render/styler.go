package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/chat"
)

// Styles is the palette used by Styler.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Details   lipgloss.Style
	RoleLabel lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		User: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Padding(0, 1),
		Assistant: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1),
		Details: lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Italic(true),
		RoleLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
	}
}

// Styler renders blocks for a terminal.
type Styler struct {
	styles   Styles
	markdown bool
	theme    string

	mu       sync.Mutex
	renderer *glamour.TermRenderer
	rWidth   int
}

// NewStyler returns a styler. With markdown enabled, assistant bodies go
// through glamour using the given standard style ("dark", "light", "notty").
func NewStyler(styles Styles, markdown bool, theme string) *Styler {
	if theme == "" {
		theme = "dark"
	}
	return &Styler{styles: styles, markdown: markdown, theme: theme}
}

// String renders b to fit width columns.
func (s *Styler) String(b Block, width int) string {
	if width <= 0 {
		width = 80
	}
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = width
	}

	body := b.Body
	var style lipgloss.Style
	if b.Role == chat.RoleUser {
		style = s.styles.User
	} else {
		style = s.styles.Assistant
		body = s.markdownBody(body, bubbleWidth-4)
	}

	content := body
	if b.HasDetails() {
		content += "\n" + s.styles.Details.Render(strings.Join(b.Details, "\n"))
	}
	inner := lipgloss.Width(content)
	if inner > bubbleWidth-4 {
		inner = bubbleWidth - 4
	}
	// Width includes the horizontal padding but not the border
	rendered := style.Width(inner + 2).Render(content)

	pos := lipgloss.Left
	if b.Align == AlignRight {
		pos = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, pos, rendered)
}

// Plain renders b without colours, for logs and non-terminal output.
func Plain(b Block) string {
	var sb strings.Builder
	sb.WriteString(string(b.Role))
	sb.WriteString(": ")
	sb.WriteString(b.Body)
	for _, d := range b.Details {
		sb.WriteString("\n  ")
		sb.WriteString(d)
	}
	return sb.String()
}

func (s *Styler) markdownBody(body string, width int) string {
	if !s.markdown || strings.TrimSpace(body) == "" {
		return body
	}
	r, err := s.rendererFor(width)
	if err != nil {
		log.Debug().Str("component", "render").Err(err).Msg("markdown renderer unavailable")
		return body
	}
	out, err := r.Render(body)
	if err != nil {
		log.Debug().Str("component", "render").Err(err).Msg("markdown render failed")
		return body
	}
	return strings.Trim(out, "\n")
}

func (s *Styler) rendererFor(width int) (*glamour.TermRenderer, error) {
	if width < 10 {
		width = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer != nil && s.rWidth == width {
		return s.renderer, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(s.theme),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating markdown renderer")
	}
	s.renderer = r
	s.rWidth = width
	return r, nil
}
