package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/go-go-golems/parley/pkg/render"
	"github.com/go-go-golems/parley/pkg/widget"
)

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// TerminalWidth returns the width of f, or fallback when it is not a
// terminal.
func TerminalWidth(f *os.File, fallback int) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}

// LineWriter prints controller updates as plain lines. It implements every
// widget binding except Navigator.
type LineWriter struct {
	mu     sync.Mutex
	out    io.Writer
	styler *render.Styler
	plain  bool
	width  int

	alertColor *color.Color
	infoColor  *color.Color
	expected   string
}

// NewLineWriter renders styled blocks when out supports colour, plain text
// otherwise.
func NewLineWriter(out io.Writer, styler *render.Styler, width int) *LineWriter {
	profile := termenv.NewOutput(out).Profile
	lw := &LineWriter{
		out:        out,
		styler:     styler,
		plain:      styler == nil || profile == termenv.Ascii,
		width:      width,
		alertColor: color.New(color.FgRed, color.Bold),
		infoColor:  color.New(color.FgCyan),
	}
	if lw.plain {
		lw.alertColor.DisableColor()
		lw.infoColor.DisableColor()
	}
	return lw
}

// Bindings returns the widget bindings backed by lw.
func (lw *LineWriter) Bindings(nav widget.Navigator) widget.Bindings {
	return widget.Bindings{
		Messages:  lw,
		Mic:       lw,
		Input:     lw,
		Progress:  lw,
		Expected:  lineExpected{lw},
		Topics:    lineTopics{lw},
		Alerts:    lw,
		Navigator: nav,
	}
}

// Expected returns the last expected response hint.
func (lw *LineWriter) Expected() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.expected
}

func (lw *LineWriter) printf(format string, args ...any) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = fmt.Fprintf(lw.out, format, args...)
}

func (lw *LineWriter) AppendMessage(b render.Block) {
	if lw.plain {
		lw.printf("%s\n", render.Plain(b))
		return
	}
	lw.printf("%s\n", lw.styler.String(b, lw.width))
}

func (lw *LineWriter) SetRecording(r bool) {
	if r {
		lw.printf("%s\n", lw.infoColor.Sprint("[recording, /rec again to stop]"))
		return
	}
	lw.printf("%s\n", lw.infoColor.Sprint("[recording stopped]"))
}

func (lw *LineWriter) SetText(text string) {
	lw.printf("%s\n", lw.infoColor.Sprintf("[say: %s]", text))
}

func (lw *LineWriter) Clear() {}

func (lw *LineWriter) SetProgress(p render.Progress) {
	lw.printf("%s\n", lw.infoColor.Sprintf("[progress %s, %.0f%%]", p.Label, p.Percent))
}

func (lw *LineWriter) Alert(msg string) {
	lw.printf("%s\n", lw.alertColor.Sprintf("! %s", msg))
}

type lineExpected struct{ lw *LineWriter }

func (e lineExpected) SetExpected(text string) {
	e.lw.mu.Lock()
	e.lw.expected = text
	e.lw.mu.Unlock()
	e.lw.printf("%s\n", e.lw.infoColor.Sprintf("[expected: %s]", text))
}

func (e lineExpected) SetVisible(bool) {}

type lineTopics struct{ lw *LineWriter }

func (t lineTopics) SetVisible(v bool) {
	if v {
		t.lw.printf("%s\n", t.lw.infoColor.Sprint("[conversation completed, /new <topic> to start another]"))
	}
}

const lineCommands = "/gen, /rec, /new [topic], /quit"

// RunLines reads commands from in until EOF, /quit or ctx cancellation.
//
//	/gen          ask for a practice word
//	/rec          start or stop recording
//	/new [topic]  open a new chat
//	/quit         exit
//
// Other lines starting with "/" are reported to alerts and not sent. Any
// other line is sent as a text message. Each command waits for its
// submission to finish before the next line is read. alerts may be nil.
func RunLines(ctx context.Context, in io.Reader, ctrl Controller, alerts widget.Alerter) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-readCtx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-scanErr; err != nil {
				return errors.Wrap(err, "reading input")
			}
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		var done <-chan error
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/gen":
			done = ctrl.GenerateWords(ctx)
		case "/rec":
			var err error
			done, err = ctrl.ToggleRecording(ctx)
			if err != nil {
				continue
			}
		case "/new":
			_ = ctrl.NewChat(strings.TrimSpace(arg))
		default:
			if strings.HasPrefix(cmd, "/") {
				if alerts != nil {
					alerts.Alert(fmt.Sprintf("unknown command %s, try %s", cmd, lineCommands))
				}
				continue
			}
			done = ctrl.SendTextMessage(ctx, line)
		}
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
	}
}
