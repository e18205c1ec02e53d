package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/job-listing-crawler/internal/api"
	"github.com/JakeFAU/job-listing-crawler/internal/app"
	"github.com/JakeFAU/job-listing-crawler/internal/clock/system"
	"github.com/JakeFAU/job-listing-crawler/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP trigger and runs the daily schedule",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a, nil)
		}),
	}
}

// serve runs until ctx is done. A nil listener binds server.port.
func serve(ctx context.Context, a *app.App, ln net.Listener) error {
	cfg := a.Config()
	logger := a.Logger()
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	server := api.NewServer(a.Pipeline(), api.Options{
		Keywords:    cfg.Crawler.Keywords,
		APIKey:      cfg.Server.APIKey,
		BaseContext: ctx,
	}, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		var err error
		if ln != nil {
			err = httpServer.Serve(ln)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	if cfg.Schedule.Enabled {
		g.Go(func() error {
			task := func(ctx context.Context) error {
				_, err := a.Pipeline().Run(ctx, cfg.Crawler.Keywords)
				return err
			}
			return scheduler.Daily(gctx, cfg.Schedule.DailyAt, system.NewIn(loc), task, logger.Named("scheduler"))
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
