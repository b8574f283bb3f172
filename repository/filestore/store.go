// Package filestore persists the memory backend to a JSON-lines journal. Each
// committed batch is appended and fsynced before it becomes visible; Open replays
// the journal and rebuilds balances from the ledger events.
package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"spinnergy/events"
	"spinnergy/repository/memory"
	"spinnergy/service"

	log "github.com/sirupsen/logrus"
)

// journal is the subset of *os.File the store writes through
type journal interface {
	io.WriteCloser
	Sync() error
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// Store is a memory store backed by an append-only journal file
type Store struct {
	path string
	mem  *memory.Store

	mu     sync.Mutex
	file   journal
	size   int64 // end of the last durable line
	broken error // set when a failed append could not be rolled back
}

// Open replays the journal at path, creating it if needed
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	s := &Store{path: path}
	s.mem = memory.NewStore(memory.WithCommitHook(s.append))

	batches, validSize, err := readJournal(path)
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		s.mem.Apply(batch)
	}

	if corrected := s.mem.RebuildBalances(); len(corrected) > 0 {
		log.WithFields(log.Fields{
			"path":     path,
			"accounts": corrected,
		}).Warn("Rebuilt account balances from ledger events")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Drop a torn trailing line so the next append starts on a clean boundary
	if err := file.Truncate(validSize); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to truncate journal: %w", err)
	}
	if _, err := file.Seek(validSize, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek journal: %w", err)
	}

	s.file = file
	s.size = validSize

	log.WithFields(log.Fields{
		"path":    path,
		"batches": len(batches),
	}).Info("Opened file store")

	return s, nil
}

// readJournal decodes every complete line. A final line without a newline is
// treated as torn; any other undecodable line is corruption.
func readJournal(path string) ([]*memory.Batch, int64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read journal: %w", err)
	}

	var batches []*memory.Batch
	var offset int64
	lineNo := 0
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			log.WithFields(log.Fields{
				"path":   path,
				"offset": offset,
				"bytes":  len(data),
			}).Warn("Ignoring torn journal tail")
			break
		}

		line := data[:i]
		data = data[i+1:]
		lineNo++

		if len(bytes.TrimSpace(line)) > 0 {
			var batch memory.Batch
			if err := json.Unmarshal(line, &batch); err != nil {
				return nil, 0, fmt.Errorf("failed to decode journal line %d: %w", lineNo, err)
			}
			batches = append(batches, &batch)
		}
		offset += int64(i + 1)
	}

	return batches, offset, nil
}

// append writes one batch as a single fsynced line. Runs under the memory store lock.
// A failed write or sync is cut back off the journal so the batch is never replayed.
func (s *Store) append(batch *memory.Batch) error {
	line, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("file store is closed")
	}
	if s.broken != nil {
		return fmt.Errorf("journal is unusable after a failed rollback: %w", s.broken)
	}

	if _, err := s.file.Write(line); err != nil {
		return s.rollback(fmt.Errorf("failed to write journal: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		return s.rollback(fmt.Errorf("failed to sync journal: %w", err))
	}

	s.size += int64(len(line))
	return nil
}

// rollback truncates the journal to the last durable line and returns cause
func (s *Store) rollback(cause error) error {
	err := s.file.Truncate(s.size)
	if err == nil {
		_, err = s.file.Seek(s.size, io.SeekStart)
	}
	if err != nil {
		s.broken = err
		log.WithFields(log.Fields{
			"path":   s.path,
			"offset": s.size,
			"error":  err,
		}).Error("Failed to roll back journal, refusing further commits")
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}

	log.WithFields(log.Fields{
		"path":   s.path,
		"offset": s.size,
		"error":  cause,
	}).Warn("Rolled back failed journal append")
	return cause
}

// UnitOfWorkFactory returns a factory whose commits go through the journal
func (s *Store) UnitOfWorkFactory(eventBus *events.Bus) service.UnitOfWorkFactory {
	return memory.NewUnitOfWorkFactory(s.mem, eventBus)
}

// Path returns the journal location
func (s *Store) Path() string {
	return s.path
}

// Close flushes and closes the journal. Later commits fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
