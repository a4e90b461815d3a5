package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Session = Session{
		RoomID:    "7",
		CSRFToken: "tok",
		URLs: URLs{
			SendMessage: "http://localhost:8000/room/7/send/",
			WebSocket:   "ws://localhost:8000/ws/chat/7/",
		},
	}
	return cfg
}

func TestValidateAcceptsDefaultsWithSession(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Session.URLs.SendMessage = ""
	cfg.Session.URLs.WebSocket = "http://localhost/ws"
	cfg.Reconnect.Multiplier = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "send_message is required")
	require.Contains(t, err.Error(), "session.urls.websocket")
	require.Contains(t, err.Error(), "multiplier")
}

func TestValidateWebSocketIsOptional(t *testing.T) {
	cfg := validConfig()
	cfg.Session.URLs.WebSocket = ""
	require.NoError(t, cfg.Validate())
}

func TestResolveDerivesEndpointsFromBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.Session.RoomID = "12"
	cfg.Resolve()

	require.Equal(t, "http://example.test/room/12/send/", cfg.Session.URLs.SendMessage)
	require.Equal(t, "http://example.test/room/", cfg.Session.URLs.NewChat)
	require.Equal(t, "http://example.test/room/", cfg.Session.URLs.LegacyAudio)
}

func TestResolveKeepsExplicitURLs(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURL = "http://other.test"
	cfg.Resolve()
	require.Equal(t, "http://localhost:8000/room/7/send/", cfg.Session.URLs.SendMessage)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.yaml")
	content := `
base_url: http://localhost:8000
session:
  room_id: "3"
reconnect:
  initial_delay: 1s
  max_delay: 4s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PARLEY_SESSION_CSRF_TOKEN", "from-env")

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := FromViper(v)
	require.NoError(t, err)

	require.Equal(t, "3", cfg.Session.RoomID)
	require.Equal(t, "from-env", cfg.Session.CSRFToken)
	require.Equal(t, "http://localhost:8000/room/3/send/", cfg.Session.URLs.SendMessage)
	require.Equal(t, time.Second, cfg.Reconnect.InitialDelay)
	require.Equal(t, 4*time.Second, cfg.Reconnect.MaxDelay)
	require.Equal(t, 10, cfg.Reconnect.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestNewViperMissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PARLEY_TEST_DOTENV=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PARLEY_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "yes", os.Getenv("PARLEY_TEST_DOTENV"))
}

func TestWriteYAMLRedacted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, validConfig().Redacted()))
	require.NotContains(t, buf.String(), "tok\n")
	require.Contains(t, buf.String(), "<redacted>")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Contains(t, back, "session")
}
