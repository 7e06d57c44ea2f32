package update

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// StateStore persists the last-check timestamp and the pending update.
// It is the only writer of that state.
type StateStore interface {
	// ShouldCheck reports whether more than interval has elapsed since the
	// last recorded check. Missing or unreadable state means true.
	ShouldCheck(now time.Time, interval time.Duration) bool
	RecordCheck(now time.Time) error
	LastCheck() (time.Time, bool)
	SavePending(info PendingUpdate) error
	// LoadPending returns false when there is no usable pending record.
	LoadPending() (*PendingUpdate, bool)
	ClearPending() error
}

func shouldCheck(last time.Time, ok bool, now time.Time, interval time.Duration) bool {
	if !ok {
		return true
	}
	return now.Sub(last) > interval
}

// FileStateStore keeps state in two files under the installation directory.
type FileStateStore struct {
	lastCheckFile string
	pendingFile   string
}

// NewFileStateStore creates a store backed by the given files.
func NewFileStateStore(lastCheckFile, pendingFile string) *FileStateStore {
	return &FileStateStore{
		lastCheckFile: lastCheckFile,
		pendingFile:   pendingFile,
	}
}

// ShouldCheck implements StateStore.
func (s *FileStateStore) ShouldCheck(now time.Time, interval time.Duration) bool {
	last, ok := s.LastCheck()
	return shouldCheck(last, ok, now, interval)
}

// LastCheck reads the recorded timestamp.
func (s *FileStateStore) LastCheck() (time.Time, bool) {
	data, err := os.ReadFile(s.lastCheckFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debugf("failed to read %s: %v", s.lastCheckFile, err)
		}
		return time.Time{}, false
	}

	last, err := parseTimestamp(string(data))
	if err != nil {
		log.Debugf("ignoring corrupt timestamp in %s: %v", s.lastCheckFile, err)
		return time.Time{}, false
	}
	return last, true
}

// RecordCheck writes now as seconds since the epoch.
func (s *FileStateStore) RecordCheck(now time.Time) error {
	data := []byte(strconv.FormatInt(now.Unix(), 10) + "\n")
	if err := writeFileAtomic(s.lastCheckFile, data); err != nil {
		return newError(KindFilesystem, "record check", err)
	}
	return nil
}

// SavePending replaces the pending update record.
func (s *FileStateStore) SavePending(info PendingUpdate) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return newError(KindFormat, "save pending update", err)
	}
	if err := writeFileAtomic(s.pendingFile, data); err != nil {
		return newError(KindFilesystem, "save pending update", err)
	}
	return nil
}

// LoadPending reads the pending update record.
func (s *FileStateStore) LoadPending() (*PendingUpdate, bool) {
	data, err := os.ReadFile(s.pendingFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debugf("failed to read %s: %v", s.pendingFile, err)
		}
		return nil, false
	}

	var info PendingUpdate
	if err := json.Unmarshal(data, &info); err != nil {
		log.Warnf("ignoring corrupt pending update record %s: %v", s.pendingFile, err)
		return nil, false
	}
	if info.RemoteVersion == "" {
		return nil, false
	}
	return &info, true
}

// ClearPending removes the pending update record. A missing record is not an error.
func (s *FileStateStore) ClearPending() error {
	if err := os.Remove(s.pendingFile); err != nil && !os.IsNotExist(err) {
		return newError(KindFilesystem, "clear pending update", err)
	}
	return nil
}

// parseTimestamp accepts integral or fractional seconds since the epoch.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	secs, frac := math.Modf(f)
	return time.Unix(int64(secs), int64(frac*float64(time.Second))), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// MemoryStateStore keeps state in memory. Safe for concurrent use.
type MemoryStateStore struct {
	mu        sync.Mutex
	lastCheck *time.Time
	pending   *PendingUpdate
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// ShouldCheck implements StateStore.
func (s *MemoryStateStore) ShouldCheck(now time.Time, interval time.Duration) bool {
	last, ok := s.LastCheck()
	return shouldCheck(last, ok, now, interval)
}

// LastCheck implements StateStore.
func (s *MemoryStateStore) LastCheck() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCheck == nil {
		return time.Time{}, false
	}
	return *s.lastCheck, true
}

// RecordCheck implements StateStore.
func (s *MemoryStateStore) RecordCheck(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheck = &now
	return nil
}

// SavePending implements StateStore.
func (s *MemoryStateStore) SavePending(info PendingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &info
	return nil
}

// LoadPending implements StateStore.
func (s *MemoryStateStore) LoadPending() (*PendingUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, false
	}
	info := *s.pending
	return &info, true
}

// ClearPending implements StateStore.
func (s *MemoryStateStore) ClearPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}
