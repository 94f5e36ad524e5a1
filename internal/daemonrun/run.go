// Package daemonrun boots a foreground webmill daemon. It is shared by the
// webmilld binary and the webmill serve command.
package daemonrun

import (
	"context"

	"webmill/internal/config"
	"webmill/internal/daemon"
	"webmill/internal/jobs"
	"webmill/internal/logging"
)

// Run loads configuration, opens the job store, and serves the daemon until
// the context is canceled.
func Run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewWithLogDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return err
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("webmilld shutting down")
	d.Stop()
	return nil
}
