package cmds

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/parley/pkg/audio"
	"github.com/go-go-golems/parley/pkg/backend"
	"github.com/go-go-golems/parley/pkg/config"
	"github.com/go-go-golems/parley/pkg/eventbus"
	"github.com/go-go-golems/parley/pkg/render"
	"github.com/go-go-golems/parley/pkg/socket"
	"github.com/go-go-golems/parley/pkg/ui"
	"github.com/go-go-golems/parley/pkg/widget"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a chat room and practice by typing or speaking",
		Long: `Join a chat room. Type and press enter to send a message, press ctrl+r to
start and stop recording, ctrl+g to get a practice word.

When stdin is not a terminal (or with --line-mode), parley reads one message
per line and understands /gen, /rec, /new [topic] and /quit.`,
		RunE: runChat,
	}
	cmd.Flags().Bool("line-mode", false, "Use plain line input and output instead of the full screen UI")
	cmd.Flags().StringSlice("topic", nil, "Topics offered when a conversation is completed")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if topics, _ := cmd.Flags().GetStringSlice("topic"); len(topics) > 0 {
		cfg.UI.Topics = topics
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lineMode, _ := cmd.Flags().GetBool("line-mode")
	lineMode = lineMode || cfg.UI.LineMode || !ui.IsInteractive(os.Stdin)
	if !lineMode {
		silenceConsoleLogs(cmd)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := backend.NewClient(cfg.Session, cfg.HTTPTimeout)
	rec := audio.NewRecorder(audio.NewCommandSource(cfg.Recorder.Command, cfg.Recorder.Args, cfg.Recorder.MIMEType))
	styler := render.NewStyler(render.DefaultStyles(), cfg.UI.Markdown, cfg.UI.Style)

	opts, closeSocket, err := socketOptions(cfg)
	if err != nil {
		return err
	}
	defer closeSocket()

	log.Info().Str("room", cfg.Session.RoomID).Bool("line_mode", lineMode).
		Bool("live", cfg.Session.URLs.WebSocket != "").Msg("joining chat")

	if lineMode {
		return runLineChat(ctx, cfg, api, rec, styler, opts)
	}
	return runTUIChat(ctx, cfg, api, rec, styler, opts)
}

// socketOptions wires the push channel to the controller through the event
// bus when a WebSocket URL is configured.
func socketOptions(cfg config.Config) ([]widget.Option, func(), error) {
	wsURL := cfg.Session.URLs.WebSocket
	if wsURL == "" {
		return nil, func() {}, nil
	}
	bus, err := eventbus.New()
	if err != nil {
		return nil, nil, err
	}

	header := http.Header{}
	if origin := originOf(cfg.Session.URLs.SendMessage); origin != "" {
		header.Set("Origin", origin)
	}
	ch := socket.NewChannel(wsURL, socket.PolicyFrom(cfg.Reconnect),
		socket.WithHeader(header),
		socket.OnFrame(func(data []byte) {
			if err := bus.PublishFrame(data); err != nil {
				log.Warn().Str("component", "chat").Err(err).Msg("could not publish frame")
			}
		}),
		socket.OnStatus(func(s socket.Status) {
			log.Debug().Str("component", "chat").Str("status", s.Kind.String()).
				Dur("delay", s.Delay).AnErr("error", s.Err).Msg("websocket status")
		}),
	)
	closeFn := func() {
		if err := bus.Close(); err != nil {
			log.Debug().Err(err).Msg("closing event bus")
		}
	}
	return []widget.Option{widget.WithSocket(ch, bus)}, closeFn, nil
}

func runLineChat(ctx context.Context, cfg config.Config, api *backend.Client, rec *audio.Recorder, styler *render.Styler, opts []widget.Option) error {
	lw := ui.NewLineWriter(os.Stdout, styler, ui.TerminalWidth(os.Stdout, 80))
	ctrl := widget.New(cfg.Session, api, rec, lw.Bindings(ui.BrowserNavigator{}), opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return ctrl.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		return ui.RunLines(ctx, os.Stdin, ctrl, lw)
	})
	return eg.Wait()
}

func runTUIChat(ctx context.Context, cfg config.Config, api *backend.Client, rec *audio.Recorder, styler *render.Styler, opts []widget.Option) error {
	ref := &ui.ProgramRef{}
	ctrl := widget.New(cfg.Session, api, rec, ui.ProgramBindings(ref, ui.BrowserNavigator{}), opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, ctrl, ui.Options{
		Title:  "parley · room " + cfg.Session.RoomID,
		Topics: cfg.UI.Topics,
		Styler: styler,
	})
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.UI.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, progOpts...)
	ref.Set(p)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return ctrl.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errors.Wrap(err, "running chat UI")
		}
		return nil
	})
	return eg.Wait()
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
