package planner

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"slotcal/internal/config"
	appLog "slotcal/internal/log"
)

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch reloads the config file at path whenever it changes and hands every
// valid version to apply. Invalid edits are logged and ignored. The watcher
// is recreated with backoff if fsnotify breaks. Watch returns when ctx is
// cancelled.
func Watch(ctx context.Context, path string, apply func(*config.Config)) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		if _, err := os.Stat(path); err != nil {
			appLog.Debug("config file not readable; keeping current config", "path", path, "err", err.Error())
			return
		}
		cfg, err := config.Load(path)
		if err != nil {
			appLog.Warn("config reload failed", "path", path, "err", err.Error())
			return
		}
		if err := cfg.Validate(); err != nil {
			appLog.Warn("config rejected", "path", path, "err", err.Error())
			return
		}
		appLog.Info("config reloaded", "path", path)
		apply(cfg)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() == nil {
				reload()
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			appLog.Warn("config watch init failed", "dir", dir, "err", err.Error())
			if !wait() {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			appLog.Warn("config watch add failed", "dir", dir, "err", err.Error())
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		appLog.Debug("config watcher started", "dir", dir, "file", file)

		if !watchLoop(ctx, w, file, debounce) {
			_ = w.Close()
			return nil
		}
		_ = w.Close()
		appLog.Warn("config watcher broke; restarting", "dir", dir)
		if !wait() {
			return nil
		}
	}
	return nil
}

// watchLoop pumps events until the watcher breaks (true) or ctx ends (false).
func watchLoop(ctx context.Context, w *fsnotify.Watcher, file string, changed func()) bool {
	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) && ev.Op&ops != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true
			}
			if err == nil {
				continue
			}
			appLog.Warn("config watch error", "err", err.Error())
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				changed()
			}
		}
	}
}
