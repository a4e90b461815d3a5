package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// URLs holds the named backend endpoints used by a chat session.
type URLs struct {
	SendMessage string `mapstructure:"send_message" yaml:"send_message"`
	WebSocket   string `mapstructure:"websocket" yaml:"websocket,omitempty"`
	NewChat     string `mapstructure:"new_chat" yaml:"new_chat,omitempty"`
	LegacyAudio string `mapstructure:"legacy_audio" yaml:"legacy_audio,omitempty"`
}

// Session identifies one chat room. It is built once and handed to the
// controller by value.
type Session struct {
	RoomID    string `mapstructure:"room_id" yaml:"room_id"`
	CSRFToken string `mapstructure:"csrf_token" yaml:"csrf_token"`
	URLs      URLs   `mapstructure:"urls" yaml:"urls"`
}

// Reconnect configures the websocket reconnect policy.
type Reconnect struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
	// MaxRetries of 0 retries forever.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// Recorder configures the external capture command. The command must write
// audio to stdout until it is killed.
type Recorder struct {
	Command  string   `mapstructure:"command" yaml:"command"`
	Args     []string `mapstructure:"args" yaml:"args,flow"`
	MIMEType string   `mapstructure:"mime_type" yaml:"mime_type"`
}

// UI holds front end preferences.
type UI struct {
	Markdown  bool     `mapstructure:"markdown" yaml:"markdown"`
	Style     string   `mapstructure:"style" yaml:"style"`
	Topics    []string `mapstructure:"topics" yaml:"topics,omitempty"`
	LineMode  bool     `mapstructure:"line_mode" yaml:"line_mode"`
	AltScreen bool     `mapstructure:"alt_screen" yaml:"alt_screen"`
}

// Config is the complete client configuration.
type Config struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	Session     Session       `mapstructure:"session" yaml:"session"`
	Reconnect   Reconnect     `mapstructure:"reconnect" yaml:"reconnect"`
	Recorder    Recorder      `mapstructure:"recorder" yaml:"recorder"`
	UI          UI            `mapstructure:"ui" yaml:"ui"`
}

// DefaultReconnect returns the bounded exponential reconnect policy.
func DefaultReconnect() Reconnect {
	return Reconnect{
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		MaxRetries:   10,
	}
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout: 30 * time.Second,
		Reconnect:   DefaultReconnect(),
		Recorder: Recorder{
			Command:  "arecord",
			Args:     []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav"},
			MIMEType: "audio/wav",
		},
		UI: UI{
			Markdown:  true,
			Style:     "dark",
			AltScreen: true,
		},
	}
}

// Resolve fills endpoint URLs that were left empty from BaseURL and the room
// id, following the backend's routes (room/<id>/send/ and room/).
func (c *Config) Resolve() {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		return
	}
	u := &c.Session.URLs
	if u.SendMessage == "" && c.Session.RoomID != "" {
		u.SendMessage = fmt.Sprintf("%s/room/%s/send/", base, c.Session.RoomID)
	}
	if u.NewChat == "" {
		u.NewChat = base + "/room/"
	}
	if u.LegacyAudio == "" {
		u.LegacyAudio = base + "/room/"
	}
}

// Validate returns an error describing every invalid value.
func (c Config) Validate() error {
	var problems []string

	if c.Session.URLs.SendMessage == "" {
		problems = append(problems, "session.urls.send_message is required (or set base_url and session.room_id)")
	} else if err := checkURL(c.Session.URLs.SendMessage, "http", "https"); err != nil {
		problems = append(problems, "session.urls.send_message: "+err.Error())
	}
	if c.Session.URLs.WebSocket != "" {
		if err := checkURL(c.Session.URLs.WebSocket, "ws", "wss"); err != nil {
			problems = append(problems, "session.urls.websocket: "+err.Error())
		}
	}
	if c.HTTPTimeout < 0 {
		problems = append(problems, fmt.Sprintf("http_timeout must not be negative, got %s", c.HTTPTimeout))
	}
	r := c.Reconnect
	if r.InitialDelay <= 0 {
		problems = append(problems, fmt.Sprintf("reconnect.initial_delay must be positive, got %s", r.InitialDelay))
	}
	if r.MaxDelay < r.InitialDelay {
		problems = append(problems, fmt.Sprintf("reconnect.max_delay (%s) must be >= initial_delay (%s)", r.MaxDelay, r.InitialDelay))
	}
	if r.Multiplier < 1 {
		problems = append(problems, fmt.Sprintf("reconnect.multiplier must be >= 1, got %v", r.Multiplier))
	}
	if r.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("reconnect.max_retries must be >= 0, got %d", r.MaxRetries))
	}

	if len(problems) > 0 {
		return errors.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Session.CSRFToken != "" {
		c.Session.CSRFToken = "<redacted>"
	}
	return c
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return errors.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return errors.Errorf("scheme must be one of %s, got %q", strings.Join(schemes, "/"), u.Scheme)
}
