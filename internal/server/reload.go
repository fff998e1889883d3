package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/toolgate/internal/auth"
	"github.com/ppiankov/toolgate/internal/metrics"
)

// ReloadDebounce is how long the reloader waits after the last write
// before rebuilding.
const ReloadDebounce = 500 * time.Millisecond

// RebuildFunc loads a fresh token registry from the current settings.
type RebuildFunc func(ctx context.Context) (*auth.Registry, error)

// Reloader rebuilds the token registry when the env file changes or the
// process receives SIGHUP, and swaps it into the store. A failed rebuild
// keeps the registry already in service.
type Reloader struct {
	watcher *fsnotify.Watcher
	store   *auth.Store
	rebuild RebuildFunc
	file    string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewReloader creates a reloader for store. envFile may be empty, in which
// case only SIGHUP triggers a reload. The file's directory is watched so
// editors that replace the file by rename are still noticed.
func NewReloader(store *auth.Store, rebuild RebuildFunc, envFile string, logger *zap.Logger) (*Reloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		watcher: watcher,
		store:   store,
		rebuild: rebuild,
		logger:  logger,
	}
	if envFile != "" {
		abs, err := filepath.Abs(envFile)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolve %q: %w", envFile, err)
		}
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", envFile, err)
		}
		r.file = abs
	}
	return r, nil
}

// Reload rebuilds the registry and swaps it in.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.rebuild(ctx)
	if err != nil {
		metrics.RecordTokenReload(false)
		r.logger.Error("token reload failed, keeping current tokens", zap.Error(err))
		return err
	}
	prev := r.store.Swap(reg)
	metrics.RecordTokenReload(true)

	fields := []zap.Field{zap.Int("tokens", reg.Len()), zap.Strings("labels", reg.Labels())}
	if prev != nil {
		fields = append(fields, zap.Int("previous_tokens", prev.Len()))
	}
	r.logger.Info("token registry reloaded", fields...)
	return nil
}

// Run watches for changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-hup:
			r.logger.Info("SIGHUP received, reloading tokens")
			_ = r.Reload(ctx)

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if r.file == "" || filepath.Clean(event.Name) != r.file {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(ReloadDebounce, func() {
					_ = r.Reload(ctx)
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
