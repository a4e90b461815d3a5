// Package eventbus routes websocket frames to in-process handlers through a
// watermill router on top of a go channel pub/sub.
package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/chat"
)

// TopicFrames carries raw websocket text frames.
const TopicFrames = "parley.frames"

// Bus owns the pub/sub and the router. Handlers must be registered before
// Run.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
}

type Option func(*settings)

type settings struct {
	buffer int64
	logger watermill.LoggerAdapter
}

// WithBuffer sets the per-subscriber output buffer.
func WithBuffer(n int64) Option {
	return func(s *settings) { s.buffer = n }
}

// WithLogger overrides the watermill logger.
func WithLogger(l watermill.LoggerAdapter) Option {
	return func(s *settings) { s.logger = l }
}

func New(opts ...Option) (*Bus, error) {
	s := settings{
		buffer: 64,
		logger: NewWatermillLogger(log.With().Str("component", "eventbus").Logger()),
	}
	for _, o := range opts {
		o(&s)
	}

	// Publish blocks until the handler acks so frames keep socket order.
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            s.buffer,
		BlockPublishUntilSubscriberAck: true,
	}, s.logger)
	router, err := message.NewRouter(message.RouterConfig{}, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "creating router")
	}
	return &Bus{pubsub: pubsub, router: router}, nil
}

// PublishFrame publishes one raw frame and returns once every subscribed
// handler has processed it.
func (b *Bus) PublishFrame(data []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(TopicFrames, msg); err != nil {
		return errors.Wrap(err, "publishing frame")
	}
	return nil
}

// HandleFrames subscribes h to decoded frames. Frames that fail to decode
// are logged and acknowledged.
func (b *Bus) HandleFrames(name string, h func(chat.Frame)) {
	b.router.AddConsumerHandler(name, TopicFrames, b.pubsub, func(msg *message.Message) error {
		frame, err := chat.DecodeFrame(msg.Payload)
		if err != nil {
			log.Warn().Str("component", "eventbus").Str("handler", name).Err(err).
				Str("payload", string(msg.Payload)).Msg("dropping undecodable frame")
			return nil
		}
		h(frame)
		return nil
	})
}

// Run blocks until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	if err := b.router.Run(ctx); err != nil {
		return errors.Wrap(err, "running event router")
	}
	return nil
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

func (b *Bus) Close() error {
	rerr := b.router.Close()
	perr := b.pubsub.Close()
	if rerr != nil {
		return rerr
	}
	return perr
}
