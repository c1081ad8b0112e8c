package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CascadeBandit/internal/model"
)

// Summary is the end-of-run export written next to the database.
type Summary struct {
	RunID      string             `json:"run_id"`
	Seed       uint64             `json:"seed"`
	Iterations int                `json:"iterations"`
	Conversion map[string]float64 `json:"conversion"`
	Snapshot   model.Snapshot     `json:"snapshot"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// LoadSummary reads a summary from a JSON file. Returns nil if the file doesn't exist.
func LoadSummary(filePath string) (*Summary, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

// SaveSummary writes the summary to a JSON file, creating parent directories.
func SaveSummary(filePath string, s *Summary) error {
	s.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
