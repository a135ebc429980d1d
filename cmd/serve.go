package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/yt-summary/internal/config"
	"github.com/MimeLyc/yt-summary/internal/httpapi"
	"github.com/MimeLyc/yt-summary/internal/probe"
	"github.com/MimeLyc/yt-summary/pkg/log"
)

type probeRunner interface {
	Run(ctx context.Context, cronExpr string) error
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the local presentation server and the backend health probe",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides HTTP_ADDR"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		cfg.HTTP.Addr = v
	}

	comps := buildComponents(cfg)
	defer comps.orch.Close()

	prober := probe.New(comps.client, comps.backendURL(cfg))
	srv := httpapi.NewServer(comps.orch,
		httpapi.WithHealthSource(prober),
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runWithComponents(ctx, cfg, prober, srv)
}

// runWithComponents runs the probe and the HTTP server until ctx is done or
// either of them fails.
func runWithComponents(ctx context.Context, cfg *config.Config, prober probeRunner, srv httpServer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return prober.Run(gctx, cfg.Probe.CronExpr)
	})
	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
