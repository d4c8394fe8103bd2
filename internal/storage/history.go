package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jnieblas/openai-response-api-demo/internal/models"
)

// ErrInvalidSession is returned for session IDs that are not UUIDs
var ErrInvalidSession = errors.New("invalid session id")

// HistoryStore persists per-session exchange history as one JSON file per session
type HistoryStore struct {
	historyDir string
	limit      int
	mu         sync.Mutex
}

// NewHistoryStore creates a new history store. Sessions keep at most limit
// entries; limit <= 0 keeps everything.
func NewHistoryStore(historyDir string, limit int) *HistoryStore {
	return &HistoryStore{
		historyDir: historyDir,
		limit:      limit,
	}
}

// Append stores entry at the end of its session, assigning ID and CreatedAt
// when empty. The oldest entries are dropped once the limit is reached.
func (s *HistoryStore) Append(entry models.HistoryEntry) (models.HistoryEntry, error) {
	path, err := s.path(entry.SessionID)
	if err != nil {
		return entry, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.read(entry.SessionID, path)
	if err != nil {
		return entry, err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}
	history.Entries = append(history.Entries, entry)
	if s.limit > 0 && len(history.Entries) > s.limit {
		history.Entries = history.Entries[len(history.Entries)-s.limit:]
	}
	history.Touch()

	if err := os.MkdirAll(s.historyDir, 0755); err != nil {
		return entry, fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return entry, fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return entry, fmt.Errorf("failed to write history file: %w", err)
	}
	return entry, nil
}

// Load returns the history of a session. Unknown sessions yield an empty history.
func (s *HistoryStore) Load(sessionID string) (*models.SessionHistory, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(sessionID, path)
}

// LastResponseID returns the newest response ID recorded for the session
func (s *HistoryStore) LastResponseID(sessionID string) (string, error) {
	history, err := s.Load(sessionID)
	if err != nil {
		return "", err
	}
	return history.LastResponseID(), nil
}

// List lists all session IDs with stored history
func (s *HistoryStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			sessions = append(sessions, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return sessions, nil
}

// Clear deletes a session's history. Clearing an unknown session is not an error.
func (s *HistoryStore) Clear(sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}

// path maps a session ID to its file. Only UUIDs are accepted so IDs can
// never escape the history directory.
func (s *HistoryStore) path(sessionID string) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return filepath.Join(s.historyDir, id.String()+".json"), nil
}

func (s *HistoryStore) read(sessionID, path string) (*models.SessionHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.SessionHistory{SessionID: sessionID, Entries: []models.HistoryEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var history models.SessionHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if history.Entries == nil {
		history.Entries = []models.HistoryEntry{}
	}
	return &history, nil
}
