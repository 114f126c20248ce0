package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/productif/internal/server"
	"github.com/zulandar/productif/internal/telegraph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		noCheckIns bool
		noHTTP     bool
		sweepEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bridge, HTTP server and check-in scheduler",
		Long: `Connects to the configured chat platform and answers messages until
interrupted. The HTTP server exposes /healthz, the analytics API and, for
WhatsApp, the webhook. Scheduled check-ins run unless --no-checkins is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, !noCheckIns, !noHTTP, sweepEvery)
		},
	}

	cmd.Flags().BoolVar(&noCheckIns, "no-checkins", false, "do not send scheduled check-ins")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not start the HTTP server (not allowed with whatsapp)")
	cmd.Flags().DurationVar(&sweepEvery, "sweep-every", 10*time.Minute, "how often expired conversation states are deleted")
	return cmd
}

func runServe(cmd *cobra.Command, flags *rootFlags, checkIns, withHTTP bool, sweepEvery time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	adapter, err := newAdapter(a.cfg, a.log)
	if err != nil {
		return err
	}
	webhook, pushes := adapter.(server.Webhook)
	if pushes && !withHTTP {
		return fmt.Errorf("%s receives messages over HTTP; --no-http cannot be used", a.cfg.Telegraph.Platform)
	}

	ag, err := a.newAgent(telegraph.NewMessenger(adapter))
	if err != nil {
		return err
	}
	daemon, err := telegraph.NewDaemon(telegraph.DaemonOpts{
		DB:        a.db,
		Config:    a.cfg,
		Adapter:   adapter,
		Platform:  a.cfg.Telegraph.Platform,
		Responder: ag,
		States:    a.states,
		CheckIns:  checkIns,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	// The daemon ending (adapter closed) stops everything else.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return daemon.Run(gctx)
	})

	if withHTTP {
		exchanges, err := telegraph.NewExchangeLog(a.db)
		if err != nil {
			return err
		}
		opts := server.Opts{
			DB:        a.db,
			Exchanges: exchanges,
			Port:      a.cfg.Server.Port,
			Logger:    a.log,
		}
		if pushes {
			opts.Webhook = webhook
		}
		g.Go(func() error { return server.Start(gctx, opts) })
	}

	if a.sweeper != nil && sweepEvery > 0 {
		g.Go(func() error {
			sweepLoop(gctx, a.sweeper, sweepEvery, a.log)
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pio serving on %s (Ctrl-C to stop)\n", a.cfg.Telegraph.Platform)
	return g.Wait()
}

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// sweepLoop deletes expired conversation states until ctx is cancelled.
func sweepLoop(ctx context.Context, s sweeper, every time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("sweep expired states", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("swept expired states", zap.Int64("deleted", n))
			}
		}
	}
}
