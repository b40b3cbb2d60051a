// Package file implements the Store interface on a single JSON state file.
// The whole state is loaded at Start, mutated in memory and written back
// atomically after every change, so a crash between chunks never loses an
// acknowledged watermark advance.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oceanobs/chanharvest/internal/store"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*FileStore)(nil)

const (
	currentVersion = 1
	maxRunReports  = 50
)

// Config holds file store settings.
type Config struct {
	Path string `yaml:"path" json:"path"`
}

type lockEntry struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type state struct {
	Version    int                        `json:"version"`
	Watermarks map[string]types.Watermark `json:"watermarks,omitempty"`
	Runs       []types.RunReport          `json:"runs,omitempty"`
	Locks      map[string]lockEntry       `json:"locks,omitempty"`
}

// FileStore is a JSON-file-backed Store.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	state state
}

// New creates a new FileStore. The state file is created on first save.
func New(cfg *Config, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: cfg.Path, logger: logger}
}

func wmKey(channelID string, qcLevel int) string {
	return fmt.Sprintf("%s#%d", channelID, qcLevel)
}

// Start loads the state file. A missing file yields fresh state; a corrupt
// file is an error so a damaged history is never silently discarded.
func (s *FileStore) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state{Version: currentVersion}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no existing state file, starting fresh", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return nil
}

// Stop is a no-op: every mutation is already persisted.
func (s *FileStore) Stop(_ context.Context) error { return nil }

// Ping verifies the state directory is writable.
func (s *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("state directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state path parent %s is not a directory", dir)
	}
	return nil
}

// save writes the state atomically: temp file in the same directory, then
// rename over the target.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// GetWatermark returns the stored watermark, or nil when absent.
func (s *FileStore) GetWatermark(_ context.Context, channelID string, qcLevel int) (*types.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wm, ok := s.state.Watermarks[wmKey(channelID, qcLevel)]
	if !ok {
		return nil, nil
	}
	return &wm, nil
}

// AdvanceWatermark moves the watermark forward, never backward.
func (s *FileStore) AdvanceWatermark(_ context.Context, channelID string, qcLevel int, coveredThrough time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := wmKey(channelID, qcLevel)
	if existing, ok := s.state.Watermarks[key]; ok && !coveredThrough.After(existing.CoveredThrough) {
		return nil
	}

	if s.state.Watermarks == nil {
		s.state.Watermarks = make(map[string]types.Watermark)
	}
	s.state.Watermarks[key] = types.Watermark{
		ChannelID:      channelID,
		QCLevel:        qcLevel,
		CoveredThrough: coveredThrough,
		UpdatedAt:      time.Now().UTC(),
	}
	return s.save()
}

// ListWatermarks returns all watermarks for a QC level, ordered by channel id.
func (s *FileStore) ListWatermarks(_ context.Context, qcLevel int) ([]types.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Watermark
	for _, wm := range s.state.Watermarks {
		if wm.QCLevel == qcLevel {
			out = append(out, wm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

// PutRunReport appends a run report, keeping the most recent entries only.
func (s *FileStore) PutRunReport(_ context.Context, report types.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Runs = append(s.state.Runs, report)
	if len(s.state.Runs) > maxRunReports {
		s.state.Runs = s.state.Runs[len(s.state.Runs)-maxRunReports:]
	}
	return s.save()
}

// ListRunReports returns the most recent run reports, newest first.
func (s *FileStore) ListRunReports(_ context.Context, limit int) ([]types.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.state.Runs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.RunReport, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.state.Runs[i])
	}
	return out, nil
}

// AcquireLock takes the named lock unless it is held and unexpired.
func (s *FileStore) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if entry, ok := s.state.Locks[key]; ok && entry.ExpiresAt.After(now) {
		return false, nil
	}
	if s.state.Locks == nil {
		s.state.Locks = make(map[string]lockEntry)
	}
	s.state.Locks[key] = lockEntry{ExpiresAt: now.Add(ttl)}
	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLock drops the named lock.
func (s *FileStore) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Locks[key]; !ok {
		return nil
	}
	delete(s.state.Locks, key)
	return s.save()
}
