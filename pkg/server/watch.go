package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce collapses bursts of manifest events, such as a branch checkout
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the snapshot whenever a manifest under packagesDir changes or
// a package directory appears or disappears. It blocks until ctx is done.
func (r *Reloader) Watch(ctx context.Context, packagesDir, manifestFile string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := setupWatcher(watcher, packagesDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", packagesDir, err)
	}
	r.log.Infof("Watching %s for manifest changes", packagesDir)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Watch new package directories
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(packagesDir) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						r.log.WithError(err).Warnf("Error watching new directory %s", event.Name)
					}
				}
			}

			if !relevant(event, packagesDir, manifestFile) {
				continue
			}
			r.log.WithField("file", event.Name).Debugf("Manifest event: %s", event.Op)

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			func() {
				defer observability.RecoverPanic(r.log, "watch reload")
				_ = r.Reload(ctx, TriggerWatch)
			}()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Warn("Watcher error")
		}
	}
}

// Schedule reloads the snapshot on a cron schedule until ctx is done
func (r *Reloader) Schedule(ctx context.Context, spec string) error {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		defer observability.RecoverPanic(r.log, "scheduled reload")
		_ = r.Reload(ctx, TriggerCron)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reload %q: %w", spec, err)
	}

	c.Start()
	r.log.Infof("Reload schedule: %s", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// setupWatcher adds the packages directory and each package directory
func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(root, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// relevant reports whether an event can change the graph: a manifest file was
// touched, or an entry directly under the packages directory came or went
func relevant(event fsnotify.Event, packagesDir, manifestFile string) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if filepath.Base(event.Name) == manifestFile {
		return true
	}
	return filepath.Dir(event.Name) == filepath.Clean(packagesDir)
}
