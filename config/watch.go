package config

import (
	"context"
	"path/filepath"

	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/fsnotify/fsnotify"
)

// Reload reads Configfile again and activates it. An invalid file keeps
// the active configuration.
func Reload() error {
	cfg, err := Readconfigtoml()
	if err != nil {
		return err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	current.Store(cfg)
	return nil
}

// Watch reloads the configuration whenever Configfile is written until ctx
// is done. The directory is watched, not the file, so editors replacing the
// file are noticed too. onReload, if set, runs after each successful reload.
func Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(Configfile)); err != nil {
		watcher.Close()
		return err
	}
	name := filepath.Clean(Configfile)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Logtype(logger.StatusError, 0).Err(err).Msg("Config watcher")
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != name || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
					continue
				}
				if err := Reload(); err != nil {
					logger.Logtype(logger.StatusWarning, 0).Str("file", name).Err(err).Msg("Config not reloaded")
					continue
				}
				logger.Logtype(logger.StatusInfo, 0).Str("file", name).Msg("Config reloaded")
				if onReload != nil {
					onReload()
				}
			}
		}
	}()
	return nil
}
