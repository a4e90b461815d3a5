package audio

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Recorder is the Idle/Recording state machine. The state and the buffer
// only change together under mu.
type Recorder struct {
	source Source

	mu       sync.Mutex
	state    State
	buf      Buffer
	capture  Capture
	session  uint64
	starting bool
	stopping bool
}

func NewRecorder(source Source) *Recorder {
	return &Recorder{source: source}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Buffered returns the number of bytes captured in the current session.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

// Start opens the source and moves to Recording. The buffer is cleared
// first. On failure the recorder stays Idle and the error wraps
// ErrPermissionDenied or ErrNoDevice where applicable.
func (r *Recorder) Start(ctx context.Context) error {
	if r.source == nil {
		return ErrNoDevice
	}

	r.mu.Lock()
	if r.state == Recording || r.starting || r.stopping {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.session++
	session := r.session
	r.buf.Reset()
	r.starting = true
	r.mu.Unlock()

	capture, err := r.source.Start(ctx, func(p []byte) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.session == session && (r.starting || r.state == Recording) {
			r.buf.Append(p)
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
	if err != nil {
		r.buf.Reset()
		return errors.Wrap(err, "starting capture")
	}
	r.state = Recording
	r.capture = capture
	log.Debug().Str("component", "audio").Uint64("session", session).Msg("recording started")
	return nil
}

// Stop ends the current session, releases the source and returns the
// concatenated recording.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	if r.state != Recording || r.stopping || r.capture == nil {
		r.mu.Unlock()
		return Blob{}, ErrNotRecording
	}
	r.stopping = true
	capture := r.capture
	r.mu.Unlock()

	// chunks may still arrive until capture.Stop returns
	stopErr := capture.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	blob := r.buf.Consume(r.source.MIMEType())
	r.state = Idle
	r.capture = nil
	r.stopping = false

	log.Debug().Str("component", "audio").Uint64("session", r.session).Int("bytes", blob.Len()).Msg("recording stopped")
	if stopErr != nil {
		return blob, errors.Wrap(stopErr, "releasing capture")
	}
	return blob, nil
}
