// Package audio captures microphone input into an in-memory buffer.
//
// A Recorder owns exactly one capture session at a time. Chunks delivered by
// a Source are appended to the Buffer; Stop concatenates them into a Blob and
// releases the source. No resampling or encoding happens here.
package audio

import (
	"bytes"
	"context"
	"mime"
	"strings"

	"github.com/pkg/errors"
)

// State is the recorder state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened
	// because access was refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNoDevice is returned when no capture device or capture command exists.
	ErrNoDevice = errors.New("no microphone available")
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no session is active.
	ErrNotRecording = errors.New("not recording")
)

// Blob is a finalized recording.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Len is the payload size in bytes.
func (b Blob) Len() int { return len(b.Data) }

// Extension guesses a file extension from the MIME type, ".bin" when unknown.
func (b Blob) Extension() string {
	base := b.MIMEType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// Buffer is an ordered list of captured chunks.
type Buffer struct {
	chunks [][]byte
	size   int
}

// Append copies p into the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	c := make([]byte, len(p))
	copy(c, p)
	b.chunks = append(b.chunks, c)
	b.size += len(c)
}

// Reset drops every chunk.
func (b *Buffer) Reset() {
	b.chunks = nil
	b.size = 0
}

func (b *Buffer) Len() int    { return b.size }
func (b *Buffer) Chunks() int { return len(b.chunks) }

// Consume concatenates the chunks in arrival order and resets the buffer.
func (b *Buffer) Consume(mimeType string) Blob {
	data := bytes.Join(b.chunks, nil)
	b.Reset()
	return Blob{Data: data, MIMEType: mimeType}
}

// Source produces audio chunks. Start must call onChunk from a single
// goroutine and stop calling it before the returned Capture's Stop returns.
type Source interface {
	Start(ctx context.Context, onChunk func([]byte)) (Capture, error)
	MIMEType() string
}

// Capture is a running capture session.
type Capture interface {
	// Stop ends the capture, waits for the last chunk and releases the device.
	Stop() error
}
