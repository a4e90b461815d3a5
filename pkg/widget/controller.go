// Package widget holds the chat controller: it records audio, submits text
// and audio to the backend, and applies responses and server pushes to a set
// of view bindings.
package widget

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/parley/pkg/audio"
	"github.com/go-go-golems/parley/pkg/backend"
	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/config"
	"github.com/go-go-golems/parley/pkg/eventbus"
	"github.com/go-go-golems/parley/pkg/render"
	"github.com/go-go-golems/parley/pkg/socket"
)

var (
	// ErrStopped is returned for submissions made after Run returned.
	ErrStopped = errors.New("controller stopped")
	// ErrNoNewChatURL is returned by NewChat when no URL is configured.
	ErrNoNewChatURL = errors.New("no new chat URL configured")
)

// User facing alert texts.
const (
	AlertPermissionDenied = "Microphone access was denied. Allow microphone access and try again."
	AlertNoMicrophone     = "No microphone is available."
	AlertNetwork          = "Could not reach the server. Please try again."
	AlertSocketGaveUp     = "Lost the live connection to the server."
)

// API is the backend surface used by the controller.
type API interface {
	SendText(ctx context.Context, content, expectedWord string) (chat.Response, error)
	SendAudio(ctx context.Context, blob audio.Blob, expectedWord string) (chat.Response, error)
	GenerateWords(ctx context.Context) (chat.Response, error)
}

// Recorder is the microphone state machine.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (audio.Blob, error)
	State() audio.State
}

// SocketRunner is a push channel, normally a *socket.Channel.
type SocketRunner interface {
	Run(ctx context.Context) error
}

type Option func(*Controller)

// WithSocket attaches a push channel. Frames must be published on bus by the
// channel; the controller subscribes to them in Run.
func WithSocket(ch SocketRunner, bus *eventbus.Bus) Option {
	return func(c *Controller) {
		c.socket = ch
		c.bus = bus
	}
}

// Controller drives one chat session.
type Controller struct {
	session config.Session
	api     API
	rec     Recorder
	ui      Bindings
	queue   *submitQueue

	socket SocketRunner
	bus    *eventbus.Bus

	logger zerolog.Logger

	toggleMu sync.Mutex
	// renderMu keeps the messages of one response contiguous.
	renderMu sync.Mutex

	mu           sync.Mutex
	expectedWord string
	completed    bool
}

// New builds a controller. The session is copied and never modified.
func New(session config.Session, api API, rec Recorder, ui Bindings, opts ...Option) *Controller {
	c := &Controller{
		session: session,
		api:     api,
		rec:     rec,
		ui:      ui,
		queue:   newSubmitQueue(),
		logger:  log.With().Str("component", "widget").Str("room", session.RoomID).Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run starts the submit worker and, when configured, the push channel. It
// blocks until ctx is cancelled. A push channel that gives up is reported
// through the alert binding and does not stop the controller.
func (c *Controller) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return c.queue.run(ctx)
	})

	if c.socket != nil && c.bus != nil {
		c.bus.HandleFrames("widget", c.OnSocketMessage)
		eg.Go(func() error {
			return c.bus.Run(ctx)
		})
		eg.Go(func() error {
			select {
			case <-c.bus.Running():
			case <-ctx.Done():
				return nil
			}
			err := c.socket.Run(ctx)
			if errors.Is(err, socket.ErrGaveUp) {
				c.logger.Error().Err(err).Msg("live updates disabled")
				c.ui.alert(AlertSocketGaveUp)
				return nil
			}
			return err
		})
	}

	c.logger.Debug().Bool("socket", c.socket != nil).Msg("controller running")
	return eg.Wait()
}

// ExpectedWord is the word the next submission is scored against, if any.
func (c *Controller) ExpectedWord() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expectedWord
}

// Completed reports whether the server closed the conversation.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Recording reports the microphone state.
func (c *Controller) Recording() bool {
	return c.rec != nil && c.rec.State() == audio.Recording
}

// Pending is the number of submissions waiting for the worker.
func (c *Controller) Pending() int {
	return c.queue.Len()
}

// ToggleRecording starts a recording when idle, or stops it and submits the
// audio. When a submission was queued, the returned channel yields its
// result.
func (c *Controller) ToggleRecording(ctx context.Context) (<-chan error, error) {
	c.toggleMu.Lock()
	defer c.toggleMu.Unlock()

	if c.rec == nil {
		c.ui.alert(AlertNoMicrophone)
		return nil, audio.ErrNoDevice
	}

	if c.rec.State() == audio.Idle {
		if err := c.rec.Start(ctx); err != nil {
			c.logger.Error().Err(err).Msg("could not start recording")
			switch {
			case errors.Is(err, audio.ErrPermissionDenied):
				c.ui.alert(AlertPermissionDenied)
			case errors.Is(err, audio.ErrNoDevice):
				c.ui.alert(AlertNoMicrophone)
			default:
				c.ui.alert("Could not start recording: " + err.Error())
			}
			return nil, err
		}
		c.ui.setRecording(true)
		return nil, nil
	}

	blob, err := c.rec.Stop()
	c.ui.setRecording(false)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", blob.Len()).Msg("recording stopped with error")
		if blob.Len() == 0 {
			c.ui.alert("Recording failed: " + err.Error())
			return nil, err
		}
	}
	if blob.Len() == 0 {
		c.logger.Debug().Msg("empty recording, nothing to send")
		return nil, nil
	}
	return c.SendAudioMessage(ctx, blob), nil
}

// SendTextMessage submits typed text. Blank content is ignored and no request
// is made.
func (c *Controller) SendTextMessage(ctx context.Context, content string) <-chan error {
	content = strings.TrimSpace(content)
	if content == "" {
		return closedWith(nil)
	}
	expected := c.ExpectedWord()
	return c.queue.enqueue("send-text", func() error {
		resp, err := c.api.SendText(ctx, content, expected)
		if err != nil {
			return c.fail("send text", err)
		}
		c.ui.clearInput()
		c.applyResponse(resp)
		return nil
	})
}

// SendAudioMessage submits a finished recording. Audio responses carry the
// user, feedback and continuation messages only; an assistant message is
// dropped.
func (c *Controller) SendAudioMessage(ctx context.Context, blob audio.Blob) <-chan error {
	expected := c.ExpectedWord()
	return c.queue.enqueue("send-audio", func() error {
		resp, err := c.api.SendAudio(ctx, blob, expected)
		if err != nil {
			return c.fail("send audio", err)
		}
		if resp.AssistantMessage != nil {
			c.logger.Debug().Msg("ignoring assistant message in audio response")
			resp.AssistantMessage = nil
		}
		c.applyResponse(resp)
		return nil
	})
}

// GenerateWords asks the server for a practice word, shows it, makes it the
// expected word and pre-fills the input with it.
func (c *Controller) GenerateWords(ctx context.Context) <-chan error {
	return c.queue.enqueue("generate-words", func() error {
		resp, err := c.api.GenerateWords(ctx)
		if err != nil {
			return c.fail("generate words", err)
		}
		c.applyResponse(resp)
		if m := resp.AssistantMessage; m != nil {
			word := strings.TrimSpace(m.Content)
			c.mu.Lock()
			c.expectedWord = word
			c.mu.Unlock()
			c.ui.setInput(word)
		}
		return nil
	})
}

// OnSocketMessage renders pushed chat messages. Other frame types are
// ignored.
func (c *Controller) OnSocketMessage(f chat.Frame) {
	if f.Type != chat.FrameTypeChatMessage {
		c.logger.Debug().Str("type", f.Type).Msg("ignoring push frame")
		return
	}
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.ui.appendMessage(render.Render(f.Message))
}

// NewChat navigates to the new chat page, optionally preselecting topic.
func (c *Controller) NewChat(topic string) error {
	target := c.session.URLs.NewChat
	if target == "" {
		c.ui.alert("Starting a new chat is not configured.")
		return ErrNoNewChatURL
	}
	if topic != "" {
		u, err := url.Parse(target)
		if err != nil {
			return errors.Wrap(err, "parsing new chat URL")
		}
		q := u.Query()
		q.Set("topic", topic)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	if c.ui.Navigator == nil {
		return nil
	}
	if err := c.ui.Navigator.Open(target); err != nil {
		c.logger.Error().Err(err).Str("url", target).Msg("could not open new chat")
		c.ui.alert("Could not open " + target)
		return errors.Wrap(err, "opening new chat")
	}
	return nil
}

// applyResponse renders the present messages in fixed order and updates
// progress, the expected response and the completion panels.
func (c *Controller) applyResponse(resp chat.Response) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	for _, m := range resp.Messages() {
		c.ui.appendMessage(render.Render(m))
	}
	if p, ok := resp.Progress(); ok {
		if view, ok := render.ProgressOf(p.CurrentIndex, p.Total); ok {
			c.ui.setProgress(view)
		}
	}
	if resp.ExpectedResponse != nil {
		c.ui.setExpected(*resp.ExpectedResponse)
	}
	if resp.ConversationCompleted {
		c.mu.Lock()
		c.completed = true
		c.mu.Unlock()
		c.ui.showTopics()
		c.ui.hideExpected()
	}
}

func (c *Controller) fail(op string, err error) error {
	c.logger.Error().Err(err).Str("op", op).Msg("request failed")
	if backend.IsNetworkFailure(err) {
		c.ui.alert(AlertNetwork)
	} else {
		c.ui.alert("Request failed: " + err.Error())
	}
	return err
}

func closedWith(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
