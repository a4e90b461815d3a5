package widget

import (
	"github.com/go-go-golems/parley/pkg/render"
)

// MessageList shows rendered chat messages, newest last.
type MessageList interface {
	AppendMessage(b render.Block)
}

// MicIndicator reflects the recording state.
type MicIndicator interface {
	SetRecording(recording bool)
}

// Input is the message input field.
type Input interface {
	SetText(text string)
	Clear()
}

// ProgressBar shows the position in the scripted conversation.
type ProgressBar interface {
	SetProgress(p render.Progress)
}

// ExpectedPanel shows the response the server expects next.
type ExpectedPanel interface {
	SetExpected(text string)
	SetVisible(visible bool)
}

// TopicPanel offers new topics once a conversation is completed.
type TopicPanel interface {
	SetVisible(visible bool)
}

// Alerter surfaces user facing errors.
type Alerter interface {
	Alert(msg string)
}

// Navigator opens a URL outside the widget.
type Navigator interface {
	Open(url string) error
}

// Bindings are the view handles the controller drives. Any of them may be
// nil, in which case the corresponding update is skipped.
type Bindings struct {
	Messages  MessageList
	Mic       MicIndicator
	Input     Input
	Progress  ProgressBar
	Expected  ExpectedPanel
	Topics    TopicPanel
	Alerts    Alerter
	Navigator Navigator
}

func (b Bindings) appendMessage(block render.Block) {
	if b.Messages != nil {
		b.Messages.AppendMessage(block)
	}
}

func (b Bindings) setRecording(v bool) {
	if b.Mic != nil {
		b.Mic.SetRecording(v)
	}
}

func (b Bindings) setInput(text string) {
	if b.Input != nil {
		b.Input.SetText(text)
	}
}

func (b Bindings) clearInput() {
	if b.Input != nil {
		b.Input.Clear()
	}
}

func (b Bindings) setProgress(p render.Progress) {
	if b.Progress != nil {
		b.Progress.SetProgress(p)
	}
}

func (b Bindings) setExpected(text string) {
	if b.Expected != nil {
		b.Expected.SetExpected(text)
		b.Expected.SetVisible(true)
	}
}

func (b Bindings) hideExpected() {
	if b.Expected != nil {
		b.Expected.SetVisible(false)
	}
}

func (b Bindings) showTopics() {
	if b.Topics != nil {
		b.Topics.SetVisible(true)
	}
}

func (b Bindings) alert(msg string) {
	if b.Alerts != nil {
		b.Alerts.Alert(msg)
	}
}
