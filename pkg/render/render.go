// Package render turns chat messages into display blocks. Render and
// ProgressOf are pure; Styler adds terminal styling on top.
package render

import (
	"fmt"

	"github.com/go-go-golems/parley/pkg/chat"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Block is the display form of one message.
type Block struct {
	Role  chat.Role
	Align Align
	Body  string
	// Details is empty unless the message carries a spelling score.
	Details []string
}

// HasDetails reports whether the feedback detail lines are shown.
func (b Block) HasDetails() bool { return len(b.Details) > 0 }

// Render builds the block for m. User messages are right aligned.
func Render(m chat.Message) Block {
	b := Block{Role: m.Role, Align: AlignLeft, Body: m.Content}
	if m.Role == chat.RoleUser {
		b.Align = AlignRight
	}
	if m.HasScore() {
		b.Details = append(b.Details, fmt.Sprintf("Spelling Score: %s%%", m.FormatScore()))
		if m.OriginalText != nil {
			b.Details = append(b.Details, "Original Text: "+*m.OriginalText)
		}
	}
	return b
}

// Progress is the rendered progress indicator.
type Progress struct {
	Label   string
	Percent float64
}

// Ratio is Percent in [0,1].
func (p Progress) Ratio() float64 { return p.Percent / 100 }

// ProgressOf converts a zero-based exchange index into a label like "3/5"
// and a percentage clamped to [0,100]. It reports false when total is not
// positive.
func ProgressOf(current, total int) (Progress, bool) {
	if total <= 0 {
		return Progress{}, false
	}
	done := current + 1
	pct := float64(done) / float64(total) * 100
	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}
	return Progress{Label: fmt.Sprintf("%d/%d", done, total), Percent: pct}, true
}
