package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashwinpatil/khata-api/internal/kv"
)

// journalOp is one pending write. A nil value means delete.
type journalOp struct {
	key   string
	value []byte
}

// Journal is the fire-and-forget persistence channel between the in-memory
// ledger and the opaque key-value store. Mutations enqueue snapshots and
// never block on or observe write errors; a crash between an in-memory
// mutation and its persisted write can lose that mutation.
type Journal struct {
	store kv.Store
	ch    chan journalOp
	done  chan struct{}
	log   zerolog.Logger
}

// NewJournal starts the background writer.
func NewJournal(store kv.Store, log zerolog.Logger) *Journal {
	j := &Journal{
		store: store,
		ch:    make(chan journalOp, 512),
		done:  make(chan struct{}),
		log:   log,
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)
	for op := range j.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		if op.value == nil {
			err = j.store.Delete(ctx, op.key)
		} else {
			err = j.store.Put(ctx, op.key, op.value)
		}
		cancel()
		if err != nil {
			j.log.Error().Err(err).Str("key", op.key).Msg("journal write failed")
		}
	}
}

// Record enqueues an upsert of v under key. Marshalling or queue-full
// failures are logged, never surfaced.
func (j *Journal) Record(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		j.log.Error().Err(err).Str("key", key).Msg("journal marshal failed")
		return
	}
	select {
	case j.ch <- journalOp{key: key, value: b}:
	default:
		j.log.Warn().Str("key", key).Msg("journal queue full, write dropped")
	}
}

// RecordDelete enqueues a delete of key.
func (j *Journal) RecordDelete(key string) {
	select {
	case j.ch <- journalOp{key: key}:
	default:
		j.log.Warn().Str("key", key).Msg("journal queue full, delete dropped")
	}
}

// Close drains the queue and stops the writer.
func (j *Journal) Close() {
	close(j.ch)
	<-j.done
}
