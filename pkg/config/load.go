package config

import (
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix of environment overrides, e.g. PARLEY_SESSION_ROOM_ID.
	EnvPrefix = "PARLEY"
	// DefaultFileName is looked up in the working directory and $HOME/.parley.
	DefaultFileName = "parley"
)

// LoadDotEnv loads the given .env files (or ./.env) into the process
// environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				log.Debug().Str("component", "config").Str("file", f).Msg("no .env file found, using process environment")
				continue
			}
			return errors.Wrapf(err, "stat %s", f)
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// NewViper returns a viper instance preloaded with defaults, environment
// bindings and, if found, the config file. An empty configFile searches
// for parley.yaml in the working directory and $HOME/.parley.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.parley")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
		log.Debug().Str("component", "config").Msg("no config file found, using defaults and environment")
	} else {
		log.Debug().Str("component", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config file")
	}
	return v, nil
}

// FromViper decodes v into a Config and fills derived URLs. It does not
// validate.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	cfg.Resolve()
	return cfg, nil
}

// Load is LoadDotEnv, NewViper, FromViper and Validate in sequence.
func Load(configFile string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	v, err := NewViper(configFile)
	if err != nil {
		return Config{}, err
	}
	cfg, err := FromViper(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteYAML encodes cfg as YAML.
func WriteYAML(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return enc.Close()
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("http_timeout", d.HTTPTimeout)

	v.SetDefault("session.room_id", d.Session.RoomID)
	v.SetDefault("session.csrf_token", d.Session.CSRFToken)
	v.SetDefault("session.urls.send_message", d.Session.URLs.SendMessage)
	v.SetDefault("session.urls.websocket", d.Session.URLs.WebSocket)
	v.SetDefault("session.urls.new_chat", d.Session.URLs.NewChat)
	v.SetDefault("session.urls.legacy_audio", d.Session.URLs.LegacyAudio)

	v.SetDefault("reconnect.initial_delay", d.Reconnect.InitialDelay)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)
	v.SetDefault("reconnect.multiplier", d.Reconnect.Multiplier)
	v.SetDefault("reconnect.max_retries", d.Reconnect.MaxRetries)

	v.SetDefault("recorder.command", d.Recorder.Command)
	v.SetDefault("recorder.args", d.Recorder.Args)
	v.SetDefault("recorder.mime_type", d.Recorder.MIMEType)

	v.SetDefault("ui.markdown", d.UI.Markdown)
	v.SetDefault("ui.style", d.UI.Style)
	v.SetDefault("ui.topics", d.UI.Topics)
	v.SetDefault("ui.line_mode", d.UI.LineMode)
	v.SetDefault("ui.alt_screen", d.UI.AltScreen)
}
