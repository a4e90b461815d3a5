package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/render"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	hintStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// Controller is the part of widget.Controller the model drives.
type Controller interface {
	ToggleRecording(ctx context.Context) (<-chan error, error)
	SendTextMessage(ctx context.Context, content string) <-chan error
	GenerateWords(ctx context.Context) <-chan error
	NewChat(topic string) error
}

// ClipboardFunc writes text to the system clipboard.
type ClipboardFunc func(text string) error

type Options struct {
	Title     string
	Topics    []string
	Styler    *render.Styler
	Keys      KeyMap
	Clipboard ClipboardFunc
}

// Model is the chat TUI.
type Model struct {
	ctx  context.Context
	ctrl Controller
	opts Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
	help     help.Model

	blocks       []render.Block
	recording    bool
	hasProgress  bool
	progressView render.Progress
	expected     string
	showExpected bool
	showTopics   bool
	topicForm    *huh.Form
	alert        string
	status       string

	width  int
	height int
	ready  bool
}

func NewModel(ctx context.Context, ctrl Controller, opts Options) Model {
	if opts.Styler == nil {
		opts.Styler = render.NewStyler(render.DefaultStyles(), true, "dark")
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Keys.Send.Keys() == nil {
		opts.Keys = DefaultKeyMap()
	}
	if opts.Title == "" {
		opts.Title = "parley"
	}

	in := textinput.New()
	in.Placeholder = "Type a message, or ctrl+r to speak"
	in.Prompt = "> "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = recStyle

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		opts:     opts,
		viewport: viewport.New(80, 20),
		input:    in,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.topicForm != nil {
		if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.opts.Keys.Quit) {
			return m, tea.Quit
		}
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m.updateTopicForm(msg)
		}
	}

	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = ev.Width, ev.Height
		m.ready = true
		m.layout()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(ev)

	case AppendMessageMsg:
		m.blocks = append(m.blocks, ev.Block)
		m.refreshViewport()
		return m, nil

	case RecordingMsg:
		m.recording = ev.Recording
		if m.recording {
			m.status = "recording"
			return m, m.spinner.Tick
		}
		m.status = "sending audio"
		return m, nil

	case SetInputMsg:
		m.input.SetValue(ev.Text)
		m.input.CursorEnd()
		return m, nil

	case ClearInputMsg:
		m.input.Reset()
		return m, nil

	case ProgressMsg:
		m.hasProgress = true
		m.progressView = ev.Progress
		return m, nil

	case ExpectedMsg:
		m.expected = ev.Text
		return m, nil

	case ExpectedShownMsg:
		m.showExpected = ev.Visible
		m.layout()
		return m, nil

	case TopicsShownMsg:
		m.showTopics = ev.Visible
		var cmd tea.Cmd
		if ev.Visible && len(m.opts.Topics) > 0 && m.topicForm == nil {
			m.topicForm = newTopicForm(m.opts.Topics, m.width)
			cmd = m.topicForm.Init()
		}
		if !ev.Visible {
			m.topicForm = nil
		}
		m.layout()
		return m, cmd

	case AlertMsg:
		m.alert = ev.Text
		return m, nil

	case submitDoneMsg:
		if ev.err == nil {
			m.status = ""
		} else {
			m.status = ev.op + " failed"
			log.Debug().Str("component", "ui").Str("op", ev.op).Err(ev.err).Msg("submission failed")
		}
		return m, nil

	case copiedMsg:
		if ev.err != nil {
			m.alert = "Could not copy to clipboard: " + ev.err.Error()
		} else {
			m.status = "hint copied"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.recording {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(ev)
		return m, cmd
	}

	if m.topicForm != nil {
		return m.updateTopicForm(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.opts.Keys
	switch {
	case key.Matches(k, keys.Quit):
		return m, tea.Quit

	case key.Matches(k, keys.Record):
		m.alert = ""
		return m, m.toggleRecording()

	case key.Matches(k, keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.alert = ""
		m.status = "sending"
		return m, m.await("send", m.ctrl.SendTextMessage(m.ctx, text))

	case key.Matches(k, keys.Generate):
		m.alert = ""
		m.status = "fetching a word"
		return m, m.await("generate", m.ctrl.GenerateWords(m.ctx))

	case key.Matches(k, keys.NewChat):
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return submitDoneMsg{op: "new chat", err: ctrl.NewChat("")}
		}

	case key.Matches(k, keys.CopyHint):
		if m.expected == "" {
			return m, nil
		}
		text, write := m.expected, m.opts.Clipboard
		return m, func() tea.Msg { return copiedMsg{err: write(text)} }

	case k.Type == tea.KeyPgUp || k.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(k)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m Model) toggleRecording() tea.Cmd {
	ctx, ctrl, stopping := m.ctx, m.ctrl, m.recording
	return func() tea.Msg {
		done, err := ctrl.ToggleRecording(ctx)
		if err != nil {
			return submitDoneMsg{op: "record", err: err}
		}
		if done == nil {
			// An empty recording queues nothing; clear "sending audio".
			if stopping {
				return submitDoneMsg{op: "record"}
			}
			return nil
		}
		return submitDoneMsg{op: "send audio", err: <-done}
	}
}

func (m Model) await(op string, done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{op: op, err: <-done}
	}
}

func (m Model) updateTopicForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.topicForm.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.topicForm = f
	}
	switch m.topicForm.State {
	case huh.StateCompleted:
		topic := m.topicForm.GetString("topic")
		m.topicForm = nil
		ctrl := m.ctrl
		return m, tea.Batch(cmd, func() tea.Msg {
			return submitDoneMsg{op: "new chat", err: ctrl.NewChat(topic)}
		})
	case huh.StateAborted:
		m.topicForm = nil
	}
	return m, cmd
}

func newTopicForm(topics []string, width int) *huh.Form {
	f := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Key("topic").
			Title("Conversation completed. Pick a new topic").
			Options(huh.NewOptions(topics...)...),
	)).WithShowHelp(false)
	if width > 0 {
		f = f.WithWidth(width)
	}
	return f
}

// layout sizes the viewport to whatever the fixed chrome leaves.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.input.Width = max(10, m.width-4)
	m.help.Width = m.width
	m.progress.Width = max(10, min(40, m.width/3))

	chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView())
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

func (m *Model) refreshViewport() {
	parts := make([]string, 0, len(m.blocks))
	for _, b := range m.blocks {
		parts = append(parts, m.opts.Styler.String(b, m.viewport.Width))
	}
	m.viewport.SetContent(strings.Join(parts, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) headerView() string {
	title := headerStyle.Render(m.opts.Title)
	if !m.hasProgress {
		return title
	}
	bar := m.progress.ViewAs(m.progressView.Ratio())
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", bar, " ", subHeaderStyle.Render(m.progressView.Label))
}

func (m Model) footerView() string {
	var sb strings.Builder

	if m.showExpected && m.expected != "" {
		sb.WriteString(hintStyle.Render("Expected: " + m.expected))
		sb.WriteString("\n")
	}
	if m.showTopics {
		if m.topicForm != nil {
			sb.WriteString(m.topicForm.View())
		} else {
			sb.WriteString(subHeaderStyle.Render("Conversation completed. Press ctrl+n to start a new chat."))
		}
		sb.WriteString("\n")
	}
	if m.alert != "" {
		sb.WriteString(errorStyle.Render(m.alert))
		sb.WriteString("\n")
	}

	mic := mutedStyle.Render("○ mic")
	if m.recording {
		mic = m.spinner.View() + recStyle.Render(" REC")
	}
	line := mic
	if m.status != "" {
		line += "  " + mutedStyle.Render(m.status)
	}
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.opts.Keys))
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}
