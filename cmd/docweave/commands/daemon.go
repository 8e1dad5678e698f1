package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Addr string `help:"HTTP listen address, overriding daemon.http_addr"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if d.Addr != "" {
		cfg.Daemon.HTTPAddr = d.Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunDaemon(ctx, g, cfg, root.Config)
}

// RunDaemon serves until ctx is done, then stops gracefully.
func RunDaemon(ctx context.Context, g *Global, cfg *config.Config, configPath string) error {
	be, err := openBackends(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer be.close(g.Logger)

	opts := []daemon.Option{
		daemon.WithLogger(g.Logger),
		daemon.WithPublisher(be.publisher),
	}
	if be.store != nil {
		opts = append(opts, daemon.WithStore(be.store))
	}
	d := daemon.New(configPath, cfg, opts...)
	if err := d.Start(ctx); err != nil {
		_ = d.Stop(context.Background())
		return err
	}

	<-ctx.Done()
	g.Logger.Info("Shutdown signal received, stopping daemon", slog.String("cause", context.Cause(ctx).Error()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}
