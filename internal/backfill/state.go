package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is where replay progress is kept between runs.
const DefaultStatePath = "~/.veilmatch/backfill-state.json"

// State tracks progress for resumable replay runs.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	FilesProcessed  []string  `json:"files_processed"`
	// Offsets holds the number of lines consumed from files that were only
	// partly replayed. Signals are additive, so resuming must skip them.
	Offsets        map[string]int `json:"offsets,omitempty"`
	SignalsApplied int            `json:"signals_applied"`
	SignalsSkipped int            `json:"signals_skipped"`
	Errors         []string       `json:"errors"`

	path string // not serialized
}

// LoadState loads replay state from path, or starts a fresh one.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given file has already been replayed.
func (s *State) IsProcessed(path string) bool {
	for _, f := range s.FilesProcessed {
		if f == path {
			return true
		}
	}
	return false
}

func (s *State) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
	delete(s.Offsets, path)
}

// Offset returns how many lines of path were consumed by earlier runs.
func (s *State) Offset(path string) int {
	return s.Offsets[path]
}

func (s *State) SetOffset(path string, line int) {
	if s.Offsets == nil {
		s.Offsets = make(map[string]int)
	}
	s.Offsets[path] = line
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
