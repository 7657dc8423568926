package queue

import (
	"encoding/binary"
	"fmt"
	"sync"

	"opay/db"
	"opay/jsonx"
	"opay/logx"
	"opay/monitoring"
	"opay/types"
)

const (
	entryPrefix = "pending:"
	seqPrefix   = "pendingseq:"
	seqCounter  = "pendingmeta:seq"
)

// PendingQueue is the durable, nonce-keyed store of not-yet-confirmed signed
// transactions. It is the sole source of truth for money the device still
// owes the network a sync for, so every mutation goes through an atomic batch.
type PendingQueue struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

// queueRecord wraps the payload with its insertion-order slot so removal can
// clean up the ordering index without a scan.
type queueRecord struct {
	Seq     uint64                    `json:"seq"`
	Payload *types.TransactionPayload `json:"payload"`
}

// NewPendingQueue creates a pending queue over the shared durable provider
func NewPendingQueue(dbProvider db.DatabaseProvider) (*PendingQueue, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &PendingQueue{
		dbProvider: dbProvider,
	}, nil
}

// Enqueue upserts a payload keyed by its nonce. Re-enqueueing an existing
// nonce overwrites the stored payload and keeps its original queue slot, so
// the queue never holds two entries for one nonce.
func (pq *PendingQueue) Enqueue(payload *types.TransactionPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	record := &queueRecord{Payload: payload}

	existing, err := pq.dbProvider.Get(entryKey(payload.Nonce))
	if err != nil {
		return fmt.Errorf("could not read queue entry %s: %w", payload.Nonce, err)
	}

	batch := pq.dbProvider.Batch()
	defer batch.Close()

	if existing != nil {
		var old queueRecord
		if err := jsonx.Unmarshal(existing, &old); err != nil {
			return fmt.Errorf("queue entry %s is corrupt: %w", payload.Nonce, err)
		}
		record.Seq = old.Seq
	} else {
		seq, err := pq.nextSeq()
		if err != nil {
			return err
		}
		record.Seq = seq
		batch.Put(seqKey(seq), []byte(payload.Nonce))
		batch.Put([]byte(seqCounter), encodeSeq(seq))
	}

	data, err := jsonx.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	batch.Put(entryKey(payload.Nonce), data)

	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to persist queue entry %s: %w", payload.Nonce, err)
	}

	monitoring.SetPendingQueueSize(pq.lenLocked())
	logx.Info("QUEUE", "Enqueued pending transaction | nonce=", payload.Nonce)
	return nil
}

// ListAll returns every not-yet-confirmed payload in insertion order.
func (pq *PendingQueue) ListAll() ([]*types.TransactionPayload, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	var nonces []string
	err := pq.dbProvider.IteratePrefix([]byte(seqPrefix), func(key, value []byte) bool {
		nonces = append(nonces, string(value))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("could not scan queue index: %w", err)
	}

	payloads := make([]*types.TransactionPayload, 0, len(nonces))
	for _, nonce := range nonces {
		data, err := pq.dbProvider.Get(entryKey(nonce))
		if err != nil {
			return nil, fmt.Errorf("could not read queue entry %s: %w", nonce, err)
		}
		if data == nil {
			// index slot without an entry, skip (interrupted remove)
			continue
		}
		var record queueRecord
		if err := jsonx.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("queue entry %s is corrupt: %w", nonce, err)
		}
		payloads = append(payloads, record.Payload)
	}
	return payloads, nil
}

// Remove deletes a single entry by nonce. Removing an absent nonce is a
// no-op, since remove may be invoked twice under retry.
func (pq *PendingQueue) Remove(nonce string) error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	data, err := pq.dbProvider.Get(entryKey(nonce))
	if err != nil {
		return fmt.Errorf("could not read queue entry %s: %w", nonce, err)
	}
	if data == nil {
		return nil
	}

	var record queueRecord
	if err := jsonx.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("queue entry %s is corrupt: %w", nonce, err)
	}

	batch := pq.dbProvider.Batch()
	defer batch.Close()
	batch.Delete(entryKey(nonce))
	batch.Delete(seqKey(record.Seq))
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to remove queue entry %s: %w", nonce, err)
	}

	monitoring.SetPendingQueueSize(pq.lenLocked())
	return nil
}

// ClearAll wipes the queue. Administrative local-state reset only, never part
// of the sync path.
func (pq *PendingQueue) ClearAll() error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	batch := pq.dbProvider.Batch()
	defer batch.Close()

	for _, prefix := range []string{entryPrefix, seqPrefix} {
		err := pq.dbProvider.IteratePrefix([]byte(prefix), func(key, value []byte) bool {
			batch.Delete(append([]byte{}, key...))
			return true
		})
		if err != nil {
			return fmt.Errorf("could not scan queue for reset: %w", err)
		}
	}
	batch.Delete([]byte(seqCounter))

	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	monitoring.SetPendingQueueSize(0)
	logx.Warn("QUEUE", "Pending queue cleared")
	return nil
}

// Len returns the number of queued entries.
func (pq *PendingQueue) Len() (int, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return pq.lenLocked(), nil
}

func (pq *PendingQueue) lenLocked() int {
	count := 0
	_ = pq.dbProvider.IteratePrefix([]byte(entryPrefix), func(key, value []byte) bool {
		count++
		return true
	})
	return count
}

func (pq *PendingQueue) nextSeq() (uint64, error) {
	data, err := pq.dbProvider.Get([]byte(seqCounter))
	if err != nil {
		return 0, fmt.Errorf("could not read queue counter: %w", err)
	}
	if data == nil {
		return 1, nil
	}
	return binary.BigEndian.Uint64(data) + 1, nil
}

func entryKey(nonce string) []byte {
	return []byte(entryPrefix + nonce)
}

func seqKey(seq uint64) []byte {
	return append([]byte(seqPrefix), encodeSeq(seq)...)
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
