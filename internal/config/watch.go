package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and applies the alert policy from each successful
// reload to h. It runs until ctx is cancelled. A reload that fails to parse
// or validate is logged and the previous policy stays active.
func Watch(ctx context.Context, path string, h *Handle, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logger.Info("watching config for alert policy changes", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which arrives as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed, keeping previous policy",
					slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			h.ReplacePolicy(cfg)
			logger.Info("alert policy reloaded",
				slog.Int("escalationMinutes", cfg.Alerts.EscalationMinutes),
				slog.Int("autoResolutionMinutes", cfg.Alerts.AutoResolutionMinutes))
			// An atomic save may have replaced the inode.
			_ = watcher.Add(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", slog.String("error", err.Error()))
		}
	}
}
