package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/loader"
	"github.com/Faultbox/meshpreview/internal/logger"
	"github.com/Faultbox/meshpreview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host preview panels over HTTP and websocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	l, err := loader.FromConfig(cfg.Sources, logger.Named("loader"))
	if err != nil {
		return err
	}
	r, err := newRenderer(cfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		PingInterval: cfg.Server.PingInterval,
		MaxSessions:  cfg.Server.MaxSessions,
		Height:       cfg.Preview.Height,
		FOV:          cfg.Preview.FOV,
		Preset:       cfg.Preview.Preset,
		Grid:         cfg.Preview.ShowGrid,
		Damping:      cfg.Preview.Damping,
		FPS:          cfg.Preview.FPS,
	}
	srv := server.New(l, r, opts, logger.Named("server"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== meshpreview host ===", zap.String("addr", cfg.Server.Addr))
	err = srv.ListenAndServe(ctx, cfg.Server.Addr)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("host stopped", zap.Int64("fetches", l.Fetches()))
	return err
}
