package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/audio"
	"github.com/go-go-golems/parley/pkg/config"
)

func session(url string) config.Session {
	return config.Session{
		RoomID:    "4",
		CSRFToken: "csrf-123",
		URLs: config.URLs{
			SendMessage: url + "/room/4/send/",
			LegacyAudio: url + "/room/",
		},
	}
}

func fixedKey() string { return "key-1" }

func TestSendTextPostsJSONWithHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/room/4/send/", r.URL.Path)
		require.Equal(t, "csrf-123", r.Header.Get(HeaderCSRF))
		require.Equal(t, "key-1", r.Header.Get(HeaderIdempotency))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"content": "hello", "expected_word": "hello"}, body)

		_, _ = io.WriteString(w, `{
			"user_message": {"role":"user","content":"hello","spelling_score":85,"original_text":"helo"},
			"current_exchange_index": 2,
			"total_exchanges": 5
		}`)
	}))
	defer srv.Close()

	c := NewClient(session(srv.URL), time.Second, WithIdempotencyKeys(fixedKey))
	resp, err := c.SendText(context.Background(), "hello", "hello")
	require.NoError(t, err)
	require.NotNil(t, resp.UserMessage)
	require.Equal(t, "85", resp.UserMessage.FormatScore())
	require.Nil(t, resp.AssistantMessage)
	p, ok := resp.Progress()
	require.True(t, ok)
	require.Equal(t, 2, p.CurrentIndex)
}

func TestSendTextOmitsEmptyExpectedWord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"content":"hi"}`, string(raw))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewClient(session(srv.URL), time.Second).SendText(context.Background(), "hi", "")
	require.NoError(t, err)
}

func TestGenerateWordsPostsAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"action":"generate_words"}`, string(raw))
		_, _ = io.WriteString(w, `{"assistant_message":{"role":"assistant","content":"banana"}}`)
	}))
	defer srv.Close()

	resp, err := NewClient(session(srv.URL), time.Second).GenerateWords(context.Background())
	require.NoError(t, err)
	require.Equal(t, "banana", resp.AssistantMessage.Content)
}

func TestSendAudioPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		require.Equal(t, "csrf-123", r.Header.Get(HeaderCSRF))
		require.NotEmpty(t, r.Header.Get(HeaderIdempotency))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		require.Equal(t, "RIFFdata", string(data))
		require.Equal(t, "recording.wav", hdr.Filename)
		require.Equal(t, "apple", r.FormValue("expected_word"))

		_, _ = io.WriteString(w, `{"user_message":{"role":"user","content":"apple"},"feedback_message":{"role":"assistant","content":"Great"}}`)
	}))
	defer srv.Close()

	blob := audio.Blob{Data: []byte("RIFFdata"), MIMEType: "audio/wav"}
	resp, err := NewClient(session(srv.URL), time.Second).SendAudio(context.Background(), blob, "apple")
	require.NoError(t, err)
	require.Nil(t, resp.AssistantMessage)
	require.Len(t, resp.Messages(), 2)
}

func TestSendAudioWithoutExpectedWord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["expected_word"]
		require.False(t, present)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := NewClient(session(srv.URL), time.Second).SendAudio(context.Background(), audio.Blob{Data: []byte("x")}, "")
	require.NoError(t, err)
	require.Empty(t, resp.Messages())
}

func TestScoreWordUsesLegacyForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/room/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		require.Equal(t, "voice.wav", hdr.Filename)
		require.Equal(t, "cat", r.FormValue("word"))
		_, _ = io.WriteString(w, `{"transcribed":"cap","score":66.67}`)
	}))
	defer srv.Close()

	res, err := NewClient(session(srv.URL), time.Second).ScoreWord(context.Background(), audio.Blob{Data: []byte("x"), MIMEType: "audio/wav"}, "cat")
	require.NoError(t, err)
	require.Equal(t, "cap", res.Transcribed)
	require.InDelta(t, 66.67, res.Score, 1e-9)
}

func TestStatusErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CSRF verification failed", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(session(srv.URL), time.Second).SendText(context.Background(), "hi", "")
	require.Error(t, err)
	require.True(t, IsNetworkFailure(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusForbidden, se.StatusCode)
	require.Contains(t, se.Body, "CSRF")
}

func TestTransportErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(session(url), time.Second).SendText(context.Background(), "hi", "")
	require.True(t, IsNetworkFailure(err))
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestMalformedBodyIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"user_message":`)
	}))
	defer srv.Close()

	_, err := NewClient(session(srv.URL), time.Second).SendText(context.Background(), "hi", "")
	require.True(t, IsNetworkFailure(err))
}

func TestMissingEndpoint(t *testing.T) {
	_, err := NewClient(config.Session{}, time.Second).SendText(context.Background(), "hi", "")
	require.Error(t, err)
	require.False(t, IsNetworkFailure(err))
}

func TestIdempotencyKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get(HeaderIdempotency)] = true
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(session(srv.URL), time.Second)
	for i := 0; i < 3; i++ {
		_, err := c.SendText(context.Background(), "hi", "")
		require.NoError(t, err)
	}
	require.Len(t, seen, 3)
}
