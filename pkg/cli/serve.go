package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ilora-retreats/concierge/pkg/httpapi"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	cfg := &config{}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CONCIERGE_ADDR"),
			Destination: &cfg.addr,
		},
		&cli.StringFlag{
			Name:        "refresh-schedule",
			Usage:       "Cron schedule for forced hotel-data refreshes",
			Value:       "@every 15m",
			Sources:     cli.EnvVars("CONCIERGE_REFRESH_SCHEDULE"),
			Destination: &cfg.refreshEvery,
		},
	}
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the concierge HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			logger := logging.From(ctx)

			rt, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cache.Refresh(ctx, true); err != nil {
				logger.Warn("initial hotel data load failed", "error", err)
			}

			srv := &http.Server{
				Addr: cfg.addr,
				Handler: httpapi.NewRouter(httpapi.Dependencies{
					Bot:      rt.bot,
					Cache:    rt.cache,
					Tickets:  rt.tickets,
					Sessions: rt.sessions,
					Bookings: rt.bookings,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.refreshEvery, func() {
				refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := rt.cache.Refresh(refreshCtx, true); err != nil {
					logger.Warn("scheduled hotel data refresh failed", "error", err)
				}
			}); err != nil {
				return goerr.Wrap(err, "invalid refresh schedule", goerr.V("schedule", cfg.refreshEvery))
			}
			scheduler.Start()
			defer scheduler.Stop()

			logger.Info("concierge API starting", "addr", cfg.addr)

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				err := srv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return goerr.Wrap(err, "http server failed")
			})
			group.Go(func() error {
				<-groupCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return group.Wait()
		},
	}
}
