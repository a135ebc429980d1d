package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/presenter"
)

func summarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "summarize one video and print the result",
		ArgsUsage: "<youtube link>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "do not draw progress"},
			&cli.BoolFlag{Name: "json", Usage: "print the final view as JSON"},
		},
		Action: summarizeAction,
	}
}

func summarizeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: yt-summary summarize <youtube link>", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	comps := buildComponents(cfg)
	defer comps.orch.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, unsubscribe := comps.orch.Events().Subscribe(16)
	var wg sync.WaitGroup
	if !c.Bool("quiet") && !c.Bool("json") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drawProgress(c.App.ErrWriter, events)
		}()
	}

	snap, err := comps.orch.Submit(c.Args().First())
	if err != nil {
		unsubscribe()
		return err
	}
	final, err := comps.orch.Wait(ctx, snap.Epoch)
	unsubscribe()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("summary interrupted: %w", err)
	}

	view := presenter.Render(final)
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		printView(c.App.Writer, c.App.ErrWriter, view)
	}

	if final.State == orchestrator.StateFailed {
		return cli.Exit("", 1)
	}
	return nil
}

// drawProgress redraws one status line per snapshot until events closes.
func drawProgress(w io.Writer, events <-chan orchestrator.Snapshot) {
	drawn := false
	for snap := range events {
		if !snap.State.InFlight() {
			continue
		}
		fmt.Fprintf(w, "\r\033[K%s", presenter.Line(presenter.Render(snap), 30))
		drawn = true
	}
	if drawn {
		fmt.Fprint(w, "\r\033[K")
	}
}

func printView(out, errOut io.Writer, v presenter.View) {
	switch v.MessageKind {
	case presenter.MessageError:
		fmt.Fprintf(errOut, "Error [%s]: %s\n", v.ErrorCode, v.Message)
		if v.Retryable {
			fmt.Fprintln(errOut, "Submit the link again to retry.")
		}
		return
	case presenter.MessageInfo:
		fmt.Fprintf(errOut, "Note: %s\n", v.Message)
	}
	if v.MethodLabel != "" {
		fmt.Fprintf(errOut, "Method: %s", v.MethodLabel)
		if v.Language != "" {
			fmt.Fprintf(errOut, ", language: %s", v.Language)
		}
		fmt.Fprintln(errOut)
	}
	fmt.Fprintln(out, v.Summary)
}
