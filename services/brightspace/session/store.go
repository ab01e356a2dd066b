package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the serialized authentication state of a browser session.
// The portal refreshes its cookies on nearly every page load, so the
// blob must be rewritten after each successful scrape.
type State struct {
	SavedAt int64    `json:"saved_at"`
	Cookies []Cookie `json:"cookies"`
	// localStorage of the portal origin
	Storage map[string]string `json:"storage,omitempty"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// FileStore persists a single session state blob at a fixed path.
// The scrape path, explicit logout and the expiry sweep all share one
// instance, the mutex keeps their read-modify-write cycles from
// racing each other.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Restore reads the stored state. A missing file is not an error, it
// returns (nil, nil) and callers fall back to interactive login.
func (s *FileStore) Restore() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var state State
	err = json.Unmarshal(raw, &state)
	if err != nil {
		// a corrupt blob behaves like no blob, forcing a fresh login
		slog.Warn("discarding corrupt session state", "path", s.path, "err", err)
		return nil, nil
	}
	return &state, nil
}

// Persist overwrites the stored state.
func (s *FileStore) Persist(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.SavedAt = time.Now().Unix()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serialize session state: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(s.path), 0700)
	if err != nil {
		return err
	}
	err = os.WriteFile(s.path, raw, 0600)
	if err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Clear deletes the stored state. Idempotent, clearing an absent
// state succeeds.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

// StartExpiryDaemon deletes the stored state once per interval
// regardless of whether it is still valid, which forces a periodic
// re-login and keeps the blob from outliving the portal's own cookie
// expiry.
func (s *FileStore) StartExpiryDaemon(ctx context.Context, interval time.Duration) {
	slog.InfoContext(ctx, "start daemon", "task", "expire session state", "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := s.Clear()
				if err != nil {
					slog.WarnContext(ctx, "failed to expire session state", "err", err)
					continue
				}
				slog.InfoContext(ctx, "expired session state", "path", s.path)
			case <-ctx.Done():
				return
			}
		}
	}()
}
