package cmds

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-go-golems/parley/pkg/config"
)

// NewRootCommand builds the parley command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "parley",
		Short:         "parley is a terminal client for spoken English practice rooms",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			lvl, _ := f.GetString("log-level")
			withCaller, _ := f.GetBool("with-caller")
			logFile, _ := f.GetString("log-file")
			return initLogger(lvl, withCaller, logFile, os.Stderr)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "Global log level (trace, debug, info, warn, error)")
	pf.Bool("with-caller", false, "Include caller (file:line) in logs")
	pf.String("log-file", "", "Write logs to this file (rotated) instead of stderr")
	pf.String("config", "", "Config file (default: ./parley.yaml or $HOME/.parley/parley.yaml)")
	pf.String("base-url", "", "Backend base URL, used to derive endpoint URLs")
	pf.String("room", "", "Chat room id")
	pf.String("csrf-token", "", "Anti-forgery token forwarded as X-CSRFToken")
	pf.String("send-url", "", "Message endpoint URL")
	pf.String("ws-url", "", "WebSocket URL for server pushes")

	rootCmd.AddCommand(
		NewChatCommand(),
		NewScoreCommand(),
		NewConfigCommand(),
	)
	return rootCmd
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"base-url":   "base_url",
	"room":       "session.room_id",
	"csrf-token": "session.csrf_token",
	"send-url":   "session.urls.send_message",
	"ws-url":     "session.urls.websocket",
}

// loadConfig reads .env, the config file, PARLEY_* variables and the
// command line, in increasing precedence. It does not validate.
func loadConfig(cmd *cobra.Command) (config.Config, *viper.Viper, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, nil, err
	}
	path, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	for flag, key := range flagKeys {
		if fl := cmd.Flags().Lookup(flag); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return config.Config{}, nil, errors.Wrapf(err, "binding --%s", flag)
			}
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, v, nil
}

// initLogger configures the global zerolog logger. With a log file, output
// goes to a rotated file; otherwise to a console writer on w.
func initLogger(level string, withCaller bool, logFile string, w io.Writer) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", level)
		}
		lvl = l
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = zerolog.ConsoleWriter{Out: w}
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
	}
	ctx := zerolog.New(out).With().Timestamp()
	if withCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

// silenceConsoleLogs drops logs that would draw over a full screen UI. A
// configured log file keeps receiving them.
func silenceConsoleLogs(cmd *cobra.Command) {
	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		return
	}
	log.Logger = zerolog.New(io.Discard)
}
