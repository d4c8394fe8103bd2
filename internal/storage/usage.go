package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// UsageStore handles usage statistics persistence, one file per day and model
type UsageStore struct {
	usageDir string
	mu       sync.Mutex
}

// NewUsageStore creates a new usage store
func NewUsageStore(usageDir string) *UsageStore {
	return &UsageStore{
		usageDir: usageDir,
	}
}

// UsageRecord represents a usage record
type UsageRecord struct {
	Date         string `json:"date"` // YYYY-MM-DD
	Model        string `json:"model"`
	TotalTokens  int64  `json:"total_tokens"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	RequestCount int64  `json:"request_count"`
	ErrorCount   int64  `json:"error_count"`
}

// RecordUsage adds one successful request to today's record for model
func (s *UsageStore) RecordUsage(model string, inputTokens, outputTokens int64) error {
	return s.update(model, func(r *UsageRecord) {
		r.InputTokens += inputTokens
		r.OutputTokens += outputTokens
		r.TotalTokens += inputTokens + outputTokens
		r.RequestCount++
	})
}

// RecordError adds one failed request to today's record for model
func (s *UsageStore) RecordError(model string) error {
	return s.update(model, func(r *UsageRecord) {
		r.RequestCount++
		r.ErrorCount++
	})
}

func (s *UsageStore) update(model string, apply func(*UsageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.usageDir, 0755); err != nil {
		return fmt.Errorf("failed to create usage directory: %w", err)
	}

	today := time.Now().Format(dateLayout)
	filePath := filepath.Join(s.usageDir, fmt.Sprintf("%s_%s.json", today, sanitizeModel(model)))

	record := UsageRecord{Date: today, Model: model}
	if data, err := os.ReadFile(filePath); err == nil {
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal usage record: %w", err)
		}
	}

	apply(&record)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage record: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write usage file: %w", err)
	}
	return nil
}

// GetUsageHistory returns the records of the last days days, today included,
// ordered by date then model.
func (s *UsageStore) GetUsageHistory(days int) ([]UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.usageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []UsageRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read usage directory: %w", err)
	}

	if days < 1 {
		days = 1
	}
	today, _ := time.Parse(dateLayout, time.Now().Format(dateLayout))
	cutoff := today.AddDate(0, 0, -(days - 1))

	records := []UsageRecord{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		// YYYY-MM-DD_model.json
		dateStr, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		recordDate, err := time.Parse(dateLayout, dateStr)
		if err != nil || recordDate.Before(cutoff) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.usageDir, entry.Name()))
		if err != nil {
			continue
		}
		var record UsageRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Model < records[j].Model
	})
	return records, nil
}

// sanitizeModel converts a model ID to a safe filename part
func sanitizeModel(model string) string {
	if model == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-").Replace(model)
}
