package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MimeLyc/yt-summary/internal/probe"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "send a diagnostic message to the backend chat route",
		ArgsUsage: "<message>",
		Action: func(c *cli.Context) error {
			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" {
				return cli.Exit("usage: yt-summary chat <message>", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			comps := buildComponents(cfg)
			defer comps.orch.Close()

			reply, err := comps.client.Chat(c.Context, comps.backendURL(cfg), message)
			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}
			fmt.Fprintln(c.App.Writer, reply)
			return nil
		},
	}
}

func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "check backend health and report its version",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			comps := buildComponents(cfg)
			defer comps.orch.Close()

			endpoint := comps.selector.Resolve(cfg.Environment())
			fmt.Fprintf(c.App.Writer, "backend:   %s (%s)\n", endpoint.BaseURL, endpoint.Kind)

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()
			st := probe.New(comps.client, endpoint.BaseURL).Check(ctx)
			if st.Error != "" {
				fmt.Fprintf(c.App.Writer, "health:    unreachable (%s)\n", st.Error)
				return cli.Exit("", 1)
			}
			fmt.Fprintf(c.App.Writer, "health:    %s\n", st.Status)
			if v := st.Version; v != nil {
				fmt.Fprintf(c.App.Writer, "commit:    %s\n", deref(v.Commit))
				fmt.Fprintf(c.App.Writer, "branch:    %s\n", deref(v.Branch))
				fmt.Fprintf(c.App.Writer, "captions:  youtube_transcript_api %s\n", deref(v.TranscriptAPIVersion))
				fmt.Fprintf(c.App.Writer, "openai:    %t\n", v.OpenAIConfigured)
			}
			if !st.Healthy {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}
