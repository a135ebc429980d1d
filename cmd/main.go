package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MimeLyc/yt-summary/internal/config"
	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/transport"
	"github.com/MimeLyc/yt-summary/pkg/log"
)

var fileLogger *log.FileLogger

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "yt-summary",
		Usage: "summarize YouTube videos through a summary backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default: LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "append logs to this file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "backend address, overrides SUMMARY_API_URL",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "auto, stream or blocking, overrides SUMMARY_TRANSPORT",
			},
		},
		Before: setupLogging,
		After:  closeLogging,
		Commands: []*cli.Command{
			summarizeCommand(),
			serveCommand(),
			chatCommand(),
			doctorCommand(),
			configCommand(),
		},
	}
}

func setupLogging(c *cli.Context) error {
	path := c.String("log-file")
	if path == "" {
		log.GetLogger().SetOutput(c.App.ErrWriter)
		return nil
	}
	fl, err := log.NewFileLogger(path, log.LevelInfo)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	fileLogger = fl
	log.SetLogger(fl.Logger)
	return nil
}

func closeLogging(*cli.Context) error {
	if fileLogger == nil {
		return nil
	}
	err := fileLogger.Close()
	fileLogger = nil
	return err
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.Option
	if v := c.String("api-url"); v != "" {
		opts = append(opts, func(cfg *config.Config) { cfg.Backend.APIURL = v })
	}
	if v := c.String("transport"); v != "" {
		opts = append(opts, func(cfg *config.Config) { cfg.Backend.Transport = v })
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Log.Level
	if v := c.String("log-level"); v != "" {
		level = v
	}
	log.GetLogger().SetLevel(log.ParseLevel(level))
	return cfg, nil
}

type components struct {
	client   *transport.Client
	selector *transport.Selector
	orch     *orchestrator.Orchestrator
}

func buildComponents(cfg *config.Config) components {
	client := transport.NewClient(cfg.Backend.RequestTimeout)
	selector := transport.NewSelector(cfg.SelectorConfig())
	dialer := transport.NewStreamDialer(30*time.Second, cfg.Backend.StreamIdleTimeout)

	orch := orchestrator.New(selector, client, dialer,
		orchestrator.WithEnvironment(cfg.Environment()),
		orchestrator.WithProgressConfig(cfg.Progress),
		orchestrator.WithBlockingRoute(orchestrator.BlockingRoute(cfg.Backend.BlockingRoute)),
		orchestrator.WithClassifier(failure.NewClassifier(cfg.ExtraRules...)),
	)
	return components{
		client:   client,
		selector: selector,
		orch:     orch,
	}
}

// backendURL is the address the selector resolves for the configured environment.
func (c components) backendURL(cfg *config.Config) string {
	return c.selector.Resolve(cfg.Environment()).BaseURL
}
