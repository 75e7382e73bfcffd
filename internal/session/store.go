// Package session implements append-only JSONL session persistence and
// recovery, and the per-session advisory write lock. Writes are
// serialized per session ID.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentplane/core/pkg/models"
)

// Store persists sessions as newline-delimited JSON files under a path
// keyed by agent ID and session ID.
type Store struct {
	baseDir string
	locker  *Locker
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir, locker: NewLocker()}
}

func (s *Store) path(agentID, sessionID string) string {
	return filepath.Join(s.baseDir, agentID, sessionID+".jsonl")
}

// Create writes the session header as the first record in a new file.
func (s *Store) Create(header models.SessionHeader) error {
	unlock := s.locker.Lock(header.SessionID)
	defer unlock()

	path := s.path(header.AgentID, header.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal session header: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write session header: %w", err)
	}
	return nil
}

// Append writes one record to an existing session file under the
// per-session advisory lock, file-append semantics.
func (s *Store) Append(agentID, sessionID string, record models.SessionRecord) error {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	path := s.path(agentID, sessionID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}

// Recover reads a session log and reconstructs its header and records.
// Reads are lock-free. Any unparseable line yields a SessionCorruptError
// naming the offending session.
func (s *Store) Recover(agentID, sessionID string) (*models.Session, error) {
	path := s.path(agentID, sessionID)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	session := &models.Session{}
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			if err := json.Unmarshal(line, &session.Header); err != nil {
				return nil, &models.SessionCorruptError{SessionID: sessionID, Cause: err}
			}
			continue
		}
		var rec models.SessionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &models.SessionCorruptError{SessionID: sessionID, Cause: err}
		}
		session.Records = append(session.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &models.SessionCorruptError{SessionID: sessionID, Cause: err}
	}
	if first {
		return nil, &models.SessionCorruptError{SessionID: sessionID, Cause: fmt.Errorf("empty session file")}
	}
	return session, nil
}
