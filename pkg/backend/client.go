package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/audio"
	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/config"
)

const (
	HeaderCSRF        = "X-CSRFToken"
	HeaderIdempotency = "Idempotency-Key"

	// maxErrorBody caps how much of a failed response is kept in StatusError.
	maxErrorBody = 512
)

// Client talks to the chat backend over HTTP.
type Client struct {
	session config.Session
	http    *http.Client
	newKey  func() string
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithIdempotencyKeys overrides the key generator. Used by tests.
func WithIdempotencyKeys(f func() string) ClientOption {
	return func(c *Client) {
		if f != nil {
			c.newKey = f
		}
	}
}

// NewClient returns a client bound to one session. A zero timeout disables
// the client side deadline.
func NewClient(session config.Session, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		session: session,
		http:    &http.Client{Timeout: timeout},
		newKey:  uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendText posts a typed message. expectedWord may be empty.
func (c *Client) SendText(ctx context.Context, content, expectedWord string) (chat.Response, error) {
	body := chat.TextRequest{Content: content, ExpectedWord: expectedWord}
	var resp chat.Response
	err := c.postJSON(ctx, "send text", c.session.URLs.SendMessage, body, &resp)
	return resp, err
}

// GenerateWords asks the server for a new prompt word.
func (c *Client) GenerateWords(ctx context.Context) (chat.Response, error) {
	body := chat.ActionRequest{Action: chat.ActionGenerateWords}
	var resp chat.Response
	err := c.postJSON(ctx, "generate words", c.session.URLs.SendMessage, body, &resp)
	return resp, err
}

// SendAudio posts a recording as the multipart field "audio", plus
// "expected_word" when one is pending.
func (c *Client) SendAudio(ctx context.Context, blob audio.Blob, expectedWord string) (chat.Response, error) {
	fields := map[string]string{}
	if expectedWord != "" {
		fields["expected_word"] = expectedWord
	}
	var resp chat.Response
	err := c.postMultipart(ctx, "send audio", c.session.URLs.SendMessage, blob, "recording"+blob.Extension(), fields, &resp)
	return resp, err
}

// ScoreWord posts a single-word recording to the legacy recorder endpoint.
func (c *Client) ScoreWord(ctx context.Context, blob audio.Blob, word string) (chat.ScoreResult, error) {
	var resp chat.ScoreResult
	err := c.postMultipart(ctx, "score word", c.session.URLs.LegacyAudio, blob, "voice.wav", map[string]string{"word": word}, &resp)
	return resp, err
}

func (c *Client) postJSON(ctx context.Context, op, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "%s: encoding body", op)
	}
	return c.do(ctx, op, url, "application/json", bytes.NewReader(payload), out)
}

func (c *Client) postMultipart(ctx context.Context, op, url string, blob audio.Blob, filename string, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
	if blob.MIMEType != "" {
		h.Set("Content-Type", blob.MIMEType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "%s: creating audio part", op)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return errors.Wrapf(err, "%s: writing audio part", op)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return errors.Wrapf(err, "%s: writing field %s", op, k)
		}
	}
	if err := mw.Close(); err != nil {
		return errors.Wrapf(err, "%s: closing multipart body", op)
	}
	return c.do(ctx, op, url, mw.FormDataContentType(), &buf, out)
}

func (c *Client) do(ctx context.Context, op, url, contentType string, body io.Reader, out any) error {
	if strings.TrimSpace(url) == "" {
		return errors.Errorf("%s: no endpoint configured", op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Wrapf(err, "%s: building request", op)
	}
	key := c.newKey()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderCSRF, c.session.CSRFToken)
	req.Header.Set(HeaderIdempotency, key)

	logger := log.With().Str("component", "backend").Str("op", op).Str("idempotency_key", key).Logger()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// empty body: every response field is optional
			return nil
		}
		return &NetworkError{Op: op, URL: url, Err: errors.Wrap(err, "decoding response")}
	}
	return nil
}
