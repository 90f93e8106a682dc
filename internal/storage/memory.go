package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps the registry in two maps guarded by one lock so that
// lookups in either direction stay consistent with each other.
type MemoryStorage struct {
	mu      sync.RWMutex
	ltos    map[string]int64
	stol    map[int64]string
	lastID  int64
	journal chan<- URLRecord
}

// MemoryOption configures a MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithRecords preloads previously journaled records.
func WithRecords(records []URLRecord) MemoryOption {
	return func(m *MemoryStorage) {
		for _, r := range records {
			m.insert(r)
		}
	}
}

// WithJournal makes every newly created record be sent to ch.
func WithJournal(ch chan<- URLRecord) MemoryOption {
	return func(m *MemoryStorage) {
		m.journal = ch
	}
}

func CreateMemoryStorage(opts ...MemoryOption) (*MemoryStorage, error) {
	m := &MemoryStorage{
		ltos: make(map[string]int64),
		stol: make(map[int64]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *MemoryStorage) insert(r URLRecord) {
	if _, exists := m.ltos[r.Original]; exists {
		return
	}
	if _, exists := m.stol[r.ID]; exists {
		return
	}

	m.ltos[r.Original] = r.ID
	m.stol[r.ID] = r.Original
	if r.ID > m.lastID {
		m.lastID = r.ID
	}
}

// GetOrCreate returns the record for original, allocating the next
// identifier when the URL has not been seen before.
func (m *MemoryStorage) GetOrCreate(ctx context.Context, original string) (URLRecord, error) {
	m.mu.RLock()
	id, exists := m.ltos[original]
	m.mu.RUnlock()
	if exists {
		return URLRecord{ID: id, Original: original}, nil
	}

	m.mu.Lock()
	// another writer may have registered it between the two locks
	if id, exists := m.ltos[original]; exists {
		m.mu.Unlock()
		return URLRecord{ID: id, Original: original}, nil
	}

	m.lastID++
	record := URLRecord{ID: m.lastID, Original: original}
	m.ltos[original] = record.ID
	m.stol[record.ID] = original
	m.mu.Unlock()

	if m.journal != nil {
		select {
		case m.journal <- record:
		case <-ctx.Done():
		}
	}

	return record, nil
}

func (m *MemoryStorage) FindByID(_ context.Context, id int64) (URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if long, exists := m.stol[id]; exists {
		return URLRecord{ID: id, Original: long}, nil
	}

	return URLRecord{}, ErrNotFound
}

func (m *MemoryStorage) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.stol), nil
}

// Read returns a snapshot of all records ordered by identifier.
func (m *MemoryStorage) Read(_ context.Context) ([]URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]URLRecord, 0, len(m.stol))
	for id := int64(1); id <= m.lastID; id++ {
		if long, exists := m.stol[id]; exists {
			records = append(records, URLRecord{ID: id, Original: long})
		}
	}

	return records, nil
}

func (m *MemoryStorage) PingContext(_ context.Context) error {
	return nil
}
