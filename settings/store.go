package settings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OnChangeListener receives the new settings after an update or an external
// edit of settings.json has been applied.
type OnChangeListener interface {
	OnSettingsChange(s Settings)
}

// Store holds the current settings and persists them to settings.json.
// External edits to the file are picked up via fsnotify so operators can
// add users without restarting the server.
type Store struct {
	path      string
	dataMu    sync.RWMutex
	data      Settings
	listeners []OnChangeListener

	// writeGen is incremented on every in-process write. reloadFromDisk
	// uses it to skip stale fsnotify-triggered reloads.
	writeGen atomic.Int64

	watcher    *fsnotify.Watcher
	debounce   *time.Timer
	debounceMu sync.Mutex
}

// NewStore loads existing settings from disk or uses defaults.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dataDir, "settings.json"),
		data: Default(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Get() Settings {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data.clone()
}

func (s *Store) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.dataMu.Lock()

	if err := s.save(settings); err != nil {
		s.dataMu.Unlock()
		return err
	}

	s.data = settings.clone()
	listeners := s.copyListeners()
	s.dataMu.Unlock()

	notify(listeners, settings)
	return nil
}

func (s *Store) AddOnChangeListener(listener OnChangeListener) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Caller must hold s.dataMu (read or write).
func (s *Store) copyListeners() []OnChangeListener {
	out := make([]OnChangeListener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// Must be called WITHOUT s.dataMu held.
func notify(listeners []OnChangeListener, settings Settings) {
	for _, l := range listeners {
		l.OnSettingsChange(settings.clone())
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		// Fall back to default for corrupted JSON
		slog.Warn("settings file is not valid JSON, using defaults", "path", s.path, "error", err)
		return nil
	}

	applyDefaults(&settings)

	// Fall back to default for invalid values
	if err := settings.Validate(); err != nil {
		slog.Warn("settings file is invalid, using defaults", "path", s.path, "error", err)
		return nil
	}

	s.data = settings
	return nil
}

// applyDefaults fills zero-valued tuning fields so a settings.json that only
// lists users still gets working limits.
func applyDefaults(settings *Settings) {
	def := Default()
	if settings.ServerName == "" {
		settings.ServerName = def.ServerName
	}
	if settings.MaxMessageLength == 0 {
		settings.MaxMessageLength = def.MaxMessageLength
	}
	if settings.SweepIntervalMS == 0 {
		settings.SweepIntervalMS = def.SweepIntervalMS
	}
	if settings.SettleDelayMS == 0 {
		settings.SettleDelayMS = def.SettleDelayMS
	}
}

// save writes atomically: write to temp file then rename. Caller must hold
// s.dataMu write lock.
func (s *Store) save(settings Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "settings-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.writeGen.Add(1)
	return nil
}

// --- fsnotify: detect external edits to settings.json ---

// StartWatching begins monitoring settings.json for external changes.
func (s *Store) StartWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (file-level watches don't survive file replacements)
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go s.watchLoop()
	slog.Info("settings store watching for external changes", "path", s.path)
	return nil
}

func (s *Store) StopWatching() {
	// Stop debounce timer first to prevent a pending reload from firing
	// after watcher.Close() but before we cancel the timer.
	s.debounceMu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceMu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.scheduleReload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("settings store fsnotify error", "error", err)
		}
	}
}

const reloadDebounce = 100 * time.Millisecond

func (s *Store) scheduleReload() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(reloadDebounce, s.reloadFromDisk)
}

func (s *Store) reloadFromDisk() {
	genBefore := s.writeGen.Load()

	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("failed to reload settings", "error", err)
		return
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		slog.Error("reloaded settings are not valid JSON, keeping current", "error", err)
		return
	}
	applyDefaults(&settings)
	if err := settings.Validate(); err != nil {
		slog.Error("reloaded settings are invalid, keeping current", "error", err)
		return
	}

	s.dataMu.Lock()

	if s.writeGen.Load() != genBefore {
		// An in-process write happened since we read the disk, so our
		// disk data may be stale. Skip this reload; the next fsnotify
		// event (from the in-process write's rename) triggers a fresh one.
		s.dataMu.Unlock()
		return
	}

	if equal(s.data, settings) {
		s.dataMu.Unlock()
		return
	}

	s.data = settings.clone()
	listeners := s.copyListeners()
	s.dataMu.Unlock()

	slog.Info("settings reloaded from disk")
	notify(listeners, settings)
}
