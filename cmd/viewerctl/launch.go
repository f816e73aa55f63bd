package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/imodctl/internal/config"
	"github.com/danmuck/imodctl/internal/observability"
	"github.com/danmuck/imodctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	heartbeatInterval = 2 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type launchOptions struct {
	configPath  string
	executable  string
	file        string
	metricsAddr string
	send        []string
	exit        bool
}

func newLaunchCmd() *cobra.Command {
	opts := &launchOptions{}
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the viewer, send commands, and kill it on interrupt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runLaunch(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&opts.configPath, "config", "", "viewer.toml path")
	fl.StringVar(&opts.executable, "executable", "", "viewer executable (overrides config)")
	fl.StringVar(&opts.file, "file", "", "project file the viewer opens on start")
	fl.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /health and /metrics on this address (overrides config)")
	fl.StringArrayVar(&opts.send, "send", nil, "command file to send after connecting; repeatable")
	fl.BoolVar(&opts.exit, "exit", false, "kill the viewer after the --send commands instead of waiting for an interrupt")
	return cmd
}

func (o *launchOptions) resolve() (config.ViewerConfig, error) {
	cfg := config.DefaultViewerConfig()
	if o.configPath != "" {
		loaded, err := config.DecodeViewerConfig(o.configPath)
		if err != nil {
			return config.ViewerConfig{}, err
		}
		cfg = loaded
	}
	if o.executable != "" {
		cfg.Executable = o.executable
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	if err := config.ValidateViewerConfig(cfg); err != nil {
		return config.ViewerConfig{}, err
	}
	return cfg, nil
}

func runLaunch(ctx context.Context, cfg config.ViewerConfig, opts *launchOptions, out io.Writer) (err error) {
	s, err := session.New(cfg.Session)
	if err != nil {
		return err
	}

	var extra []string
	if opts.file != "" {
		extra = append(extra, "--file", opts.file)
	}
	if err := s.Start(cfg.Executable, extra...); err != nil {
		return err
	}
	defer func() {
		killCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if kerr := s.Kill(killCtx); kerr != nil {
			log.Warn().Err(kerr).Msg("viewerctl.launch kill failed")
			if err == nil {
				err = kerr
			}
		}
	}()

	if cfg.MetricsAddr != "" {
		router := observability.NewRouter("viewerctl", observability.Logger("viewerctl"), func() map[string]any {
			return map[string]any{
				"session": s.State().String(),
				"viewer":  s.Addr(),
				"exited":  s.Exited(),
			}
		})
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("viewerctl.launch metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("viewerctl.launch metrics listening")
	}

	if err := s.Accept(ctx); err != nil {
		return err
	}

	for _, path := range opts.send {
		payload, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		resp, err := s.Send(ctx, payload)
		if err != nil {
			return fmt.Errorf("send %s: %w", path, err)
		}
		fmt.Fprintf(out, "%s: %s\n", path, strings.TrimSpace(resp))
	}
	if opts.exit {
		return nil
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("viewerctl.launch shutdown")
			return nil
		case <-ticker.C:
			if s.Exited() {
				return errors.New("viewer exited")
			}
			log.Debug().Str("state", s.State().String()).Msg("viewerctl.launch heartbeat")
		}
	}
}
