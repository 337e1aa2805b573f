package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/perflens/perflens/internal/report"
)

// Store persists analysis reports under a sessions directory, one JSON
// file per run. Writes are atomic (temp file + rename) and guarded by
// a file lock so concurrent perflens processes sharing a home
// directory cannot interleave.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// SessionInfo is the listing row for one stored session.
type SessionInfo struct {
	ID          string    `json:"id"`
	PageURL     string    `json:"pageUrl"`
	GeneratedAt time.Time `json:"generatedAt"`
	Complete    bool      `json:"complete"`
}

// DefaultDir returns ~/.perflens/sessions.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".perflens", "sessions"), nil
}

// NewStore opens (creating if needed) a session store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	return &Store{dir: dir, lockTimeout: 10 * time.Second}, nil
}

// Save writes a report, assigning a session ID when it has none, and
// returns the ID.
func (s *Store) Save(r *report.Report) (string, error) {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}

	err := s.withLock(func() error {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}

		final := s.sessionPath(r.SessionID)
		tmp := final + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("writing session: %w", err)
		}
		if err := os.Rename(tmp, final); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("committing session: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return r.SessionID, nil
}

// Load reads one stored report by session ID.
func (s *Store) Load(id string) (*report.Report, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", id, err)
	}
	return &r, nil
}

// List returns stored sessions, newest first. Unreadable files are
// skipped, not errors.
func (s *Store) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var sessions []SessionInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".json")]
		r, err := s.Load(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, SessionInfo{
			ID:          r.SessionID,
			PageURL:     r.PageURL,
			GeneratedAt: r.GeneratedAt,
			Complete:    r.Complete,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].GeneratedAt.After(sessions[j].GeneratedAt)
	})
	return sessions, nil
}

// Delete removes one stored session.
func (s *Store) Delete(id string) error {
	return s.withLock(func() error {
		return os.Remove(s.sessionPath(id))
	})
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// withLock runs fn while holding the store's file lock, with a timeout
// to prevent deadlocks between processes.
func (s *Store) withLock(fn func() error) error {
	lock := flock.New(filepath.Join(s.dir, ".lock"))

	deadline := time.Now().Add(s.lockTimeout)
	for {
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring store lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("store lock timeout after %v", s.lockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	defer lock.Unlock()

	return fn()
}
