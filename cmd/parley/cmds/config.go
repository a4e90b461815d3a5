package cmds

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the parley configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (token redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if used := v.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# from %s\n", used)
			}
			if err := config.WriteYAML(cmd.OutOrStdout(), cfg.Redacted()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# warning: %v\n", err)
			}
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write a parley.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(out); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", out)
			}

			cfg := config.DefaultConfig()
			cfg.BaseURL = "http://localhost:8000"
			var topics string

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Backend base URL").Value(&cfg.BaseURL).
						Validate(func(s string) error {
							if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
								return errors.New("must start with http:// or https://")
							}
							return nil
						}),
					huh.NewInput().Title("Room id").Value(&cfg.Session.RoomID),
					huh.NewInput().Title("CSRF token").Description("copied from the csrftoken cookie").Value(&cfg.Session.CSRFToken),
					huh.NewInput().Title("WebSocket URL").Description("leave empty to disable live updates").Value(&cfg.Session.URLs.WebSocket),
				),
				huh.NewGroup(
					huh.NewInput().Title("Recorder command").Value(&cfg.Recorder.Command),
					huh.NewInput().Title("Topics").Description("comma separated, offered when a conversation ends").Value(&topics),
					huh.NewConfirm().Title("Render assistant messages as markdown?").Value(&cfg.UI.Markdown),
				),
			)
			if err := form.RunWithContext(cmd.Context()); err != nil {
				return errors.Wrap(err, "config form")
			}

			for _, t := range strings.Split(topics, ",") {
				if t = strings.TrimSpace(t); t != "" {
					cfg.UI.Topics = append(cfg.UI.Topics, t)
				}
			}
			cfg.Resolve()
			if err := cfg.Validate(); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := config.WriteYAML(&buf, cfg); err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o600); err != nil {
				return errors.Wrapf(err, "writing %s", out)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", config.DefaultFileName+".yaml", "Where to write the config")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}
