// Package socket keeps a receive-only websocket open for server pushes.
package socket

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrGaveUp is returned by Run once the reconnect policy is exhausted.
var ErrGaveUp = errors.New("websocket: giving up on reconnect")

// StatusKind describes a channel lifecycle transition.
type StatusKind int

const (
	StatusConnected StatusKind = iota
	StatusClosed
	StatusDialFailed
	StatusReconnecting
	StatusGaveUp
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	case StatusDialFailed:
		return "dial-failed"
	case StatusReconnecting:
		return "reconnecting"
	case StatusGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// Status is reported through the OnStatus hook.
type Status struct {
	Kind StatusKind
	// Delay is set for StatusReconnecting.
	Delay time.Duration
	Err   error
}

type Option func(*Channel)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithHeader adds headers sent on every handshake (cookies, origin).
func WithHeader(h http.Header) Option {
	return func(c *Channel) { c.header = h.Clone() }
}

// OnFrame registers the handler for text frames. It runs on the read
// goroutine.
func OnFrame(f func([]byte)) Option {
	return func(c *Channel) { c.onFrame = f }
}

// OnStatus registers a lifecycle hook.
func OnStatus(f func(Status)) Option {
	return func(c *Channel) { c.onStatus = f }
}

// Channel is a reconnecting websocket reader. The client never writes
// frames.
type Channel struct {
	url    string
	policy Policy
	dialer *websocket.Dialer
	header http.Header

	onFrame  func([]byte)
	onStatus func(Status)

	dials      atomic.Int64
	reconnects atomic.Int64
}

func NewChannel(url string, policy Policy, opts ...Option) *Channel {
	c := &Channel{
		url:    url,
		policy: policy,
		dialer: websocket.DefaultDialer,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dials is the number of handshakes attempted.
func (c *Channel) Dials() int64 { return c.dials.Load() }

// Reconnects is the number of reconnect attempts scheduled after a closure
// or failed dial.
func (c *Channel) Reconnects() int64 { return c.reconnects.Load() }

// Run connects and keeps the channel open until ctx is cancelled (returns
// nil) or the policy gives up (returns ErrGaveUp).
func (c *Channel) Run(ctx context.Context) error {
	logger := log.With().Str("component", "socket").Str("url", c.url).Logger()
	b := c.policy.NewBackOff()

	for {
		c.dials.Add(1)
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("websocket dial failed")
			c.report(Status{Kind: StatusDialFailed, Err: err})
		} else {
			b.Reset()
			logger.Info().Msg("websocket connected")
			c.report(Status{Kind: StatusConnected})

			readErr := c.readLoop(ctx, conn, logger)
			if ctx.Err() != nil {
				return nil
			}
			logger.Info().AnErr("reason", readErr).Msg("websocket closed")
			c.report(Status{Kind: StatusClosed, Err: readErr})
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			logger.Error().Int64("dials", c.Dials()).Msg("websocket reconnect policy exhausted")
			c.report(Status{Kind: StatusGaveUp, Err: ErrGaveUp})
			return ErrGaveUp
		}
		c.reconnects.Add(1)
		logger.Debug().Dur("delay", delay).Msg("scheduling websocket reconnect")
		c.report(Status{Kind: StatusReconnecting, Delay: delay})

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, logger zerolog.Logger) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	defer func() { _ = conn.Close() }()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			logger.Debug().Int("type", mt).Msg("ignoring non-text frame")
			continue
		}
		if c.onFrame != nil {
			c.onFrame(data)
		}
	}
}

func (c *Channel) report(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
