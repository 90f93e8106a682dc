package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

const (
	defaultBatchSize     = 25
	defaultFlushInterval = 10 * time.Second
)

type Journal interface {
	WriteAll(context.Context, []storage.URLRecord) error
}

// JournalWorker collects freshly registered records and appends them to the
// journal in batches.
type JournalWorker struct {
	in            chan storage.URLRecord
	logger        *zap.Logger
	journal       Journal
	batchSize     int
	flushInterval time.Duration
}

func NewJournalWorker(logger *zap.Logger, journal Journal) *JournalWorker {
	return &JournalWorker{
		in:            make(chan storage.URLRecord, defaultBatchSize),
		logger:        logger,
		journal:       journal,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}
}

// WithFlushInterval overrides how often a partial batch is written. A
// non-positive d keeps the default.
func (w *JournalWorker) WithFlushInterval(d time.Duration) *JournalWorker {
	if d > 0 {
		w.flushInterval = d
	}
	return w
}

func (w *JournalWorker) GetInChannel() chan<- storage.URLRecord {
	return w.in
}

// Run flushes batches until ctx is cancelled, then writes whatever is still
// buffered and returns.
func (w *JournalWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	var records []storage.URLRecord

	flush := func() {
		if len(records) == 0 {
			return
		}

		fctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		w.logger.Debug("flushing journal records", zap.Int("count", len(records)))
		if err := w.journal.WriteAll(fctx, records); err != nil {
			w.logger.Error("cannot write journal records", zap.Error(err), zap.Int("dropped", len(records)))
		}
		records = records[:0]
	}

	for {
		select {
		case r := <-w.in:
			records = append(records, r)
			if len(records) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case r := <-w.in:
					records = append(records, r)
					if len(records) >= w.batchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		}
	}
}
