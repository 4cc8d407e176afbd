package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/fanyu-assistant/internal/auth"
	"github.com/example/fanyu-assistant/internal/fanyu"
	"github.com/example/fanyu-assistant/internal/logging"
	"github.com/example/fanyu-assistant/internal/notify"
	"github.com/example/fanyu-assistant/internal/scheduler"
	"github.com/example/fanyu-assistant/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the booking daemon and the local web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			log, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := state.Init(ctx); err != nil {
				return err
			}

			notifier := notify.Multi{notify.Log{Logger: log}}
			if cfg.NotifyCommand != "" {
				notifier = append(notifier, notify.Exec{Command: cfg.NotifyCommand, Logger: log})
			}

			client := fanyu.New(cfg.RemoteBase)
			sched := scheduler.New(state, client, notifier, log, cfg.PollInterval)
			if err := sched.Attach(ctx, store); err != nil {
				return err
			}
			sched.WatchFlag(ctx, cfg.PollInterval)

			authStore := auth.NewStore(store, cfg.SessionHashKey, cfg.SessionBlockKey)
			srv := &web.Server{
				Auth:      authStore,
				State:     state,
				Scheduler: sched,
				Log:       log,
			}

			log.Info("app starting",
				zap.String("listen", cfg.ListenAddr),
				zap.String("db", cfg.DBPath))

			err = web.Start(ctx, cfg.ListenAddr, srv.Routes())
			sched.Stop()
			sched.Wait()
			log.Info("app finished")
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
}
