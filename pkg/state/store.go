package state

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

const (
	// DefaultDir is where the state file lives unless overridden.
	DefaultDir = "/var/lib/vmprov"
	// FileName is the name of the state file.
	FileName = "state.yaml"
)

// Store manages the persistent state file.
type Store struct {
	dir   string
	state *State
	runID string
	mu    sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the path to the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load loads state from disk. A missing file yields an empty state.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadInternal()
}

// loadInternal loads state without locking (caller must hold lock).
func (s *Store) loadInternal() (*State, error) {
	if s.state != nil {
		return s.state, nil
	}

	path := s.Path()
	klog.V(4).Infof("[state] reading %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = NewState()
			return s.state, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	st := NewState()
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if st.Artifacts == nil {
		st.Artifacts = make(map[string]Stamp)
	}
	if st.Version != Version {
		klog.Warningf("state file %s has version %q, expected %q", path, st.Version, Version)
		st.Version = Version
	}

	s.state = st
	return st, nil
}

// saveInternal writes state atomically (caller must hold lock).
func (s *Store) saveInternal() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := s.Path()
	klog.V(4).Infof("[state] writing %s", path)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// update loads, modifies and saves state under the lock.
func (s *Store) update(modify func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadInternal()
	if err != nil {
		return err
	}
	modify(st)
	return s.saveInternal()
}

// Stamp returns the recorded stamp for an artifact.
func (s *Store) Stamp(name string) (Stamp, bool, error) {
	st, err := s.Load()
	if err != nil {
		return Stamp{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := st.Artifacts[name]
	return stamp, ok, nil
}

// Record stores a stamp for an artifact. An empty RunID is filled with the
// current run.
func (s *Store) Record(name string, stamp Stamp) error {
	return s.update(func(st *State) {
		if stamp.RunID == "" {
			stamp.RunID = s.runID
		}
		st.Artifacts[name] = stamp
	})
}

// BeginRun records the start of a provisioning run.
func (s *Store) BeginRun(id string, at time.Time) error {
	return s.update(func(st *State) {
		s.runID = id
		st.LastRun = &Run{ID: id, StartedAt: at, Status: RunRunning}
	})
}

// FinishRun records the outcome of the current run.
func (s *Store) FinishRun(id, status string, at time.Time) error {
	return s.update(func(st *State) {
		if st.LastRun == nil || st.LastRun.ID != id {
			st.LastRun = &Run{ID: id}
		}
		st.LastRun.Status = status
		st.LastRun.FinishedAt = at
	})
}
