package daemon

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/akhil1parekh/github-pr-review-agent/internal/config"
	"github.com/fsnotify/fsnotify"
)

// ConfigGetter provides access to the current config
type ConfigGetter interface {
	Config() *config.Config
}

// StaticConfig wraps a config for use without hot-reloading (e.g., in tests)
type StaticConfig struct {
	cfg *config.Config
}

// NewStaticConfig creates a ConfigGetter that always returns the same config
func NewStaticConfig(cfg *config.Config) *StaticConfig {
	return &StaticConfig{cfg: cfg}
}

// Config returns the static config
func (sc *StaticConfig) Config() *config.Config {
	return sc.cfg
}

// ConfigWatcher watches config.toml for changes and reloads configuration.
//
// Hot-reloadable settings take effect immediately: task timeouts, stage
// timeouts, retry settings, API credentials.
//
// Settings requiring restart: server_addr, max_workers, postgres_url.
// These are read at startup and the running values are preserved even if
// the config file changes.
//
// Note: ConfigWatcher is not restart-safe. Once Stop() is called, Start()
// will return an error. Create a new instance if restart is needed.
type ConfigWatcher struct {
	configPath     string
	cfg            *config.Config
	cfgMu          sync.RWMutex
	broadcaster    Broadcaster
	watcher        *fsnotify.Watcher
	stopCh         chan struct{}
	stopOnce       sync.Once
	stopped        bool
	lastReloadedAt time.Time
}

// NewConfigWatcher creates a new config watcher
func NewConfigWatcher(configPath string, cfg *config.Config, broadcaster Broadcaster) *ConfigWatcher {
	return &ConfigWatcher{
		configPath:  configPath,
		cfg:         cfg,
		broadcaster: broadcaster,
		stopCh:      make(chan struct{}),
	}
}

// Start begins watching the config file for changes.
// Returns an error if the watcher has already been stopped.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.cfgMu.RLock()
	stopped := cw.stopped
	cw.cfgMu.RUnlock()
	if stopped {
		return fmt.Errorf("config watcher already stopped; create a new instance to restart")
	}

	// Skip watching if no config path provided (e.g., in tests)
	if cw.configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	cw.watcher = watcher

	// Watch the directory containing the config file, not the file itself.
	// This handles editors that do atomic writes (delete + create).
	configDir := filepath.Dir(cw.configPath)
	configFile := filepath.Base(cw.configPath)

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		cw.watcher = nil
		return err
	}

	go cw.watchLoop(ctx, configFile)
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (cw *ConfigWatcher) Stop() {
	cw.stopOnce.Do(func() {
		cw.cfgMu.Lock()
		cw.stopped = true
		cw.cfgMu.Unlock()
		close(cw.stopCh)
		if cw.watcher != nil {
			cw.watcher.Close()
		}
	})
}

// Config returns the current config with read lock
func (cw *ConfigWatcher) Config() *config.Config {
	cw.cfgMu.RLock()
	defer cw.cfgMu.RUnlock()
	return cw.cfg
}

// LastReloadedAt returns the time of the last successful config reload
func (cw *ConfigWatcher) LastReloadedAt() time.Time {
	cw.cfgMu.RLock()
	defer cw.cfgMu.RUnlock()
	return cw.lastReloadedAt
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context, configFile string) {
	// Debounce timer to handle rapid file changes
	var debounceTimer *time.Timer
	debounceDelay := 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFile {
				continue
			}

			// Rename is needed for editors that do atomic saves via
			// rename (e.g., vim)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				cw.reloadConfig()
			})

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)
		}
	}
}

func (cw *ConfigWatcher) reloadConfig() {
	newCfg, err := config.LoadGlobalFrom(cw.configPath)
	if err != nil {
		log.Printf("Failed to reload config: %v", err)
		return
	}

	cw.cfgMu.Lock()
	oldCfg := cw.cfg
	cw.cfg = newCfg
	cw.lastReloadedAt = time.Now()
	cw.cfgMu.Unlock()

	logConfigChanges(oldCfg, newCfg)

	cw.broadcaster.Broadcast(Event{
		Type: "config.reloaded",
		TS:   time.Now(),
	})

	log.Printf("Config reloaded successfully")
}

func logConfigChanges(old, new *config.Config) {
	if old.TaskTimeoutMinutes != new.TaskTimeoutMinutes {
		log.Printf("Config change: task_timeout_minutes %d -> %d", old.TaskTimeoutMinutes, new.TaskTimeoutMinutes)
	}
	if old.ClaimTimeoutMinutes != new.ClaimTimeoutMinutes {
		log.Printf("Config change: claim_timeout_minutes %d -> %d", old.ClaimTimeoutMinutes, new.ClaimTimeoutMinutes)
	}
	if old.StageTimeoutSeconds != new.StageTimeoutSeconds {
		log.Printf("Config change: stage_timeout_seconds %d -> %d", old.StageTimeoutSeconds, new.StageTimeoutSeconds)
	}
	if old.LLMModel != new.LLMModel {
		log.Printf("Config change: llm_model %q -> %q", old.LLMModel, new.LLMModel)
	}
	if old.MaxWorkers != new.MaxWorkers {
		log.Printf("Config change: max_workers %d -> %d (requires daemon restart to take effect)", old.MaxWorkers, new.MaxWorkers)
	}
	if old.ServerAddr != new.ServerAddr {
		log.Printf("Config change: server_addr %q -> %q (requires daemon restart to take effect)", old.ServerAddr, new.ServerAddr)
	}
}
