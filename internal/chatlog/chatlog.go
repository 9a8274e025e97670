// Package chatlog keeps the ordered record of query/response pairs for one
// running session and persists it as one JSON document per log name.
package chatlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
)

// Entry is one query/response pair.
type Entry struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// SessionLog is an append-only in-memory sequence of entries, owned
// explicitly by the engine rather than shared ambiently.
type SessionLog struct {
	dir     string
	entries []Entry
	logger  log.Logger
}

// New creates an empty session log that persists under dir.
func New(dir string, logger log.Logger) *SessionLog {
	return &SessionLog{dir: dir, logger: logger}
}

// Append records one query/response pair.
func (s *SessionLog) Append(user, bot string) {
	s.entries = append(s.entries, Entry{User: user, Bot: bot})
}

// Entries returns a copy of the current entries in order.
func (s *SessionLog) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *SessionLog) Len() int { return len(s.entries) }

// Save writes all entries to <dir>/<name>.json as a whole document. An empty
// name defaults to chat_log_<YYYYMMDD_HHMMSS>; two unnamed saves within the
// same second hit the same file and the later one overwrites. Returns the
// path written.
func (s *SessionLog) Save(name string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	if name == "" {
		name = "chat_log_" + time.Now().Format("20060102_150405")
	}
	path := filepath.Join(s.dir, name+".json")
	entries := s.entries
	if entries == nil {
		// an empty session still serializes as a JSON array, not null
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode chat log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	s.logger.Info().Str("path", path).Int("entries", len(s.entries)).Msg("chat log saved")
	return path, nil
}

// Load reads a previously saved log and appends its entries after the current
// in-memory ones. A missing log is not an error: it logs a warning and leaves
// the session untouched, so callers can resume a log or start fresh without
// checking first.
func (s *SessionLog) Load(name string) error {
	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Str("name", name).Msg("chat log not found")
			return nil
		}
		return err
	}
	var loaded []Entry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decode chat log %s: %w", path, err)
	}
	s.entries = append(s.entries, loaded...)
	s.logger.Info().Str("name", name).Int("entries", len(loaded)).Msg("chat log loaded")
	return nil
}
