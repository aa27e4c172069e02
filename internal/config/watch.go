package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the config file at path whenever it changes and hands every
// successfully loaded, changed config to apply. Invalid configs are logged
// and skipped; the previous one stays in effect. Watch blocks until ctx is
// cancelled.
//
// The parent directory is watched rather than the file so that editors and
// config management tools that replace the file by rename keep working.
func Watch(ctx context.Context, path string, debounce time.Duration, log zerolog.Logger, apply func(*Config)) error {
	dir, file := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")

	var lastHash []byte
	if b, err := os.ReadFile(path); err == nil {
		h := sha256.Sum256(b)
		lastHash = h[:]
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config reload: read failed")
			return
		}
		h := sha256.Sum256(b)
		mu.Lock()
		unchanged := bytes.Equal(h[:], lastHash)
		mu.Unlock()
		if unchanged {
			return
		}
		cfg, err := Load(b)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config rejected")
			return
		}
		mu.Lock()
		lastHash = h[:]
		mu.Unlock()
		for _, warning := range cfg.Validate() {
			log.Warn().Str("path", path).Msg(warning)
		}
		log.Info().Str("path", path).Int("notifiers", len(cfg.Notifiers)).Msg("config reloaded")
		apply(cfg)
	}
	debounced := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if ctx.Err() == nil {
				reload()
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounced()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				log.Warn().Err(err).Msg("config watch overflow; forcing reload")
				debounced()
				continue
			}
			log.Warn().Err(err).Str("dir", dir).Msg("config watch error")
		}
	}
}
