package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStorage is an append-only journal of URL records, one JSON object per line.
type FileStorage struct {
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

func NewFileStorage(p string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0770); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, err
	}

	return &FileStorage{
		file:   file,
		logger: logger,
	}, nil
}

// WriteAll appends records to the journal.
func (fs *FileStorage) WriteAll(_ context.Context, records []URLRecord) error {
	if len(records) == 0 {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.write(records)
}

// Compact replaces the journal content with records. Lines skipped on replay
// are dropped, and a torn last line no longer swallows the next append.
func (fs *FileStorage) Compact(_ context.Context, records []URLRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.file.Truncate(0); err != nil {
		return fmt.Errorf("error truncating journal: %w", err)
	}
	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if len(records) == 0 {
		return fs.file.Sync()
	}
	return fs.write(records)
}

func (fs *FileStorage) write(records []URLRecord) error {
	w := bufio.NewWriter(fs.file)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	return fs.file.Sync()
}

// Read replays the journal. Lines that cannot be decoded are skipped so a
// torn last write does not prevent startup.
func (fs *FileStorage) Read(_ context.Context) ([]URLRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var records []URLRecord
	scanner := bufio.NewScanner(fs.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record URLRecord
		if err := json.Unmarshal(line, &record); err != nil {
			fs.logger.Warn("skipping malformed journal line", zap.Error(err))
			continue
		}
		if record.ID <= 0 || record.Original == "" {
			continue
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return records, nil
}

func (fs *FileStorage) Close() error {
	return fs.file.Close()
}
