package ui

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"
	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/render"
	"github.com/go-go-golems/parley/pkg/widget"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramBindings forwards every controller view update into the running
// program as a tea message.
func ProgramBindings(p Sender, nav widget.Navigator) widget.Bindings {
	s := sendBindings{p: p}
	return widget.Bindings{
		Messages:  s,
		Mic:       s,
		Input:     s,
		Progress:  s,
		Expected:  expectedBinding{p: p},
		Topics:    topicsBinding{p: p},
		Alerts:    s,
		Navigator: nav,
	}
}

type sendBindings struct{ p Sender }

func (s sendBindings) AppendMessage(b render.Block)  { s.p.Send(AppendMessageMsg{Block: b}) }
func (s sendBindings) SetRecording(r bool)           { s.p.Send(RecordingMsg{Recording: r}) }
func (s sendBindings) SetText(text string)           { s.p.Send(SetInputMsg{Text: text}) }
func (s sendBindings) Clear()                        { s.p.Send(ClearInputMsg{}) }
func (s sendBindings) SetProgress(p render.Progress) { s.p.Send(ProgressMsg{Progress: p}) }
func (s sendBindings) Alert(msg string)              { s.p.Send(AlertMsg{Text: msg}) }

type expectedBinding struct{ p Sender }

func (e expectedBinding) SetExpected(text string) { e.p.Send(ExpectedMsg{Text: text}) }
func (e expectedBinding) SetVisible(v bool)       { e.p.Send(ExpectedShownMsg{Visible: v}) }

type topicsBinding struct{ p Sender }

func (t topicsBinding) SetVisible(v bool) { t.p.Send(TopicsShownMsg{Visible: v}) }

// BrowserNavigator opens URLs in the system browser. The browser command's
// output is discarded so it cannot draw over the TUI.
type BrowserNavigator struct{}

func (BrowserNavigator) Open(url string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(url); err != nil {
		return errors.Wrapf(err, "opening %s", url)
	}
	return nil
}

// ProgramRef is a Sender whose program is attached after construction, so
// bindings can be built before the model and the program exist. Messages
// sent before Set are dropped.
type ProgramRef struct {
	mu sync.RWMutex
	p  *tea.Program
}

func (r *ProgramRef) Set(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *ProgramRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.p
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}
