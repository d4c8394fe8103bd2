package models

import (
	"time"

	"github.com/jnieblas/openai-response-api-demo/internal/responses"
)

// HistoryEntry is one completed exchange of a session
type HistoryEntry struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	ResponseID string          `json:"response_id"`
	CreatedAt  int64           `json:"created_at"`
	Prompt     string          `json:"prompt"`
	Format     string          `json:"format"`
	Model      string          `json:"model"`
	Content    string          `json:"content"`
	Usage      responses.Usage `json:"usage"`
	ToolCalls  int             `json:"tool_calls"`
}

// SessionHistory is the persisted state of one session
type SessionHistory struct {
	SessionID string         `json:"session_id"`
	UpdatedAt int64          `json:"updated_at"`
	Entries   []HistoryEntry `json:"entries"`
}

// LastResponseID returns the response ID of the newest entry, or "".
func (h *SessionHistory) LastResponseID() string {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if h.Entries[i].ResponseID != "" {
			return h.Entries[i].ResponseID
		}
	}
	return ""
}

// Touch updates the modification time
func (h *SessionHistory) Touch() {
	h.UpdatedAt = time.Now().Unix()
}
