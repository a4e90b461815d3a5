package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/audio"
	"github.com/go-go-golems/parley/pkg/backend"
	"github.com/go-go-golems/parley/pkg/chat"
)

func NewScoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score WORD",
		Short: "Record a single word and get a pronunciation score",
		Long: `Record yourself saying WORD (or send an existing recording with --file) to
the single-word recorder endpoint and print what was heard and the score.`,
		Args: cobra.ExactArgs(1),
		RunE: runScore,
	}
	cmd.Flags().String("file", "", "Send this audio file instead of recording")
	cmd.Flags().Duration("duration", 0, "Stop recording after this long (default: wait for enter)")
	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Session.URLs.LegacyAudio == "" {
		return errors.New("no recorder endpoint configured (set base_url or session.urls.legacy_audio)")
	}
	word := strings.TrimSpace(args[0])
	if word == "" {
		return errors.New("word must not be empty")
	}

	ctx := cmd.Context()
	var blob audio.Blob
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		blob = audio.Blob{Data: data, MIMEType: cfg.Recorder.MIMEType}
	} else {
		d, _ := cmd.Flags().GetDuration("duration")
		rec := audio.NewRecorder(audio.NewCommandSource(cfg.Recorder.Command, cfg.Recorder.Args, cfg.Recorder.MIMEType))
		blob, err = recordWord(ctx, rec, word, d, cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	client := backend.NewClient(cfg.Session, cfg.HTTPTimeout)
	res, err := client.ScoreWord(ctx, blob, word)
	if err != nil {
		return err
	}
	printScore(cmd.OutOrStdout(), res)
	return nil
}

func recordWord(ctx context.Context, rec *audio.Recorder, word string, d time.Duration, in io.Reader, prompt io.Writer) (audio.Blob, error) {
	if err := rec.Start(ctx); err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return audio.Blob{}, errors.Wrap(err, "microphone access was denied")
		}
		return audio.Blob{}, err
	}

	if d > 0 {
		_, _ = fmt.Fprintf(prompt, "Say %q now (%s)...\n", word, d)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	} else {
		_, _ = fmt.Fprintf(prompt, "Say %q, then press enter...\n", word)
		_, _ = bufio.NewReader(in).ReadString('\n')
	}

	blob, err := rec.Stop()
	if err != nil && blob.Len() == 0 {
		return audio.Blob{}, err
	}
	if blob.Len() == 0 {
		return audio.Blob{}, errors.New("nothing was recorded")
	}
	return blob, nil
}

func printScore(w io.Writer, res chat.ScoreResult) {
	c := color.New(color.FgGreen, color.Bold)
	switch {
	case res.Score < 50:
		c = color.New(color.FgRed, color.Bold)
	case res.Score < 80:
		c = color.New(color.FgYellow, color.Bold)
	}
	_, _ = fmt.Fprintf(w, "You said: %s, Score: %s\n", res.Transcribed, c.Sprintf("%v%%", res.Score))
}
