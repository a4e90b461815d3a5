package audio

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const chunkSize = 4096

// CommandSource records by running an external capture program (arecord,
// sox, ffmpeg) that writes audio to stdout until it is interrupted.
type CommandSource struct {
	Command string
	Args    []string
	Mime    string
	// Grace is how long Stop waits after SIGINT before killing the process.
	Grace time.Duration
}

func NewCommandSource(command string, args []string, mimeType string) *CommandSource {
	return &CommandSource{Command: command, Args: args, Mime: mimeType, Grace: 2 * time.Second}
}

func (s *CommandSource) MIMEType() string { return s.Mime }

func (s *CommandSource) Start(ctx context.Context, onChunk func([]byte)) (Capture, error) {
	path, err := exec.LookPath(s.Command)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrapf(ErrPermissionDenied, "%s: %v", s.Command, err)
		}
		return nil, errors.Wrapf(ErrNoDevice, "%s: %v", s.Command, err)
	}

	cmd := exec.Command(path, s.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "opening capture pipe")
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrapf(ErrPermissionDenied, "%s: %v", s.Command, err)
		}
		return nil, errors.Wrapf(err, "starting %s", s.Command)
	}

	c := &commandCapture{
		cmd:    cmd,
		stderr: &stderr,
		grace:  s.Grace,
		done:   make(chan struct{}),
	}
	go c.pump(stdout, onChunk)

	// the device is opened asynchronously; catch an immediate refusal
	select {
	case <-c.done:
		werr := cmd.Wait()
		return nil, classifyExit(s.Command, werr, stderr.String())
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		_ = c.Stop()
		return nil, ctx.Err()
	}

	log.Debug().Str("component", "audio").Str("command", s.Command).Int("pid", cmd.Process.Pid).Msg("capture process started")
	return c, nil
}

type commandCapture struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	grace  time.Duration
	done   chan struct{}

	once sync.Once
	err  error
}

func (c *commandCapture) pump(r io.Reader, onChunk func([]byte)) {
	defer close(c.done)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (c *commandCapture) Stop() error {
	c.once.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Signal(os.Interrupt)
		}
		select {
		case <-c.done:
		case <-time.After(c.grace):
			_ = c.cmd.Process.Kill()
			<-c.done
		}
		err := c.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			c.err = errors.Wrap(err, "waiting for capture process")
		}
	})
	return c.err
}

func classifyExit(command string, err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return errors.Wrapf(ErrPermissionDenied, "%s: %s", command, msg)
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "no such device"), strings.Contains(lower, "audio open error"):
		return errors.Wrapf(ErrNoDevice, "%s: %s", command, msg)
	case err != nil:
		return errors.Wrapf(err, "%s exited: %s", command, msg)
	default:
		return errors.Errorf("%s exited before recording started: %s", command, msg)
	}
}
