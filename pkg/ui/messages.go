package ui

import "github.com/go-go-golems/parley/pkg/render"

// Messages sent into the running program by ProgramBindings.
type (
	AppendMessageMsg struct{ Block render.Block }
	RecordingMsg     struct{ Recording bool }
	SetInputMsg      struct{ Text string }
	ClearInputMsg    struct{}
	ProgressMsg      struct{ Progress render.Progress }
	ExpectedMsg      struct{ Text string }
	ExpectedShownMsg struct{ Visible bool }
	TopicsShownMsg   struct{ Visible bool }
	AlertMsg         struct{ Text string }
)

// submitDoneMsg reports the end of a controller call started by the model.
type submitDoneMsg struct {
	op  string
	err error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct{ err error }
