package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/advisorly/reading-room/internal/domain"
)

// MessageLog is the durable, append-only room transcript, backed by
// BadgerDB. Keys are "msg:{room}:{millis_padded}:{seq_padded}" so that:
//  1. lexicographical order is chronological order (19-digit zero padding);
//  2. a process-wide sequence breaks same-millisecond ties in insertion
//     order (each room's appends are already serialized by its actor).
type MessageLog struct {
	db  *badger.DB
	log zerolog.Logger
	seq atomic.Uint64
}

// Open opens (or creates) the transcript database at path.
func Open(path string, logger zerolog.Logger) (*MessageLog, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}
	return NewMessageLog(db, logger), nil
}

func NewMessageLog(db *badger.DB, logger zerolog.Logger) *MessageLog {
	return &MessageLog{db: db, log: logger}
}

func (l *MessageLog) prefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

// Append durably writes one message. A message is only "accepted" for
// broadcast and sync once this returns nil.
func (l *MessageLog) Append(roomID string, msg domain.ChatMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%012d", roomID, msg.CreatedAtMillis, l.seq.Add(1))
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns up to limit most recent messages in chronological order.
// It scans newest-first from the top of the room's keyspace, then reverses
// for delivery. Pure read; safe during authentication and from the
// out-of-band history endpoint.
func (l *MessageLog) Recent(roomID string, limit int) ([]domain.ChatMessage, error) {
	var raw [][]byte
	err := l.db.View(func(txn *badger.Txn) error {
		prefix := l.prefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this room, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal(raw[i], &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// RunGC reclaims badger value log space on an interval. Blocks until ctx
// is cancelled; run it on its own goroutine.
func (l *MessageLog) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// RunValueLogGC rewrites at most one segment per call.
			for l.db.RunValueLogGC(0.5) == nil {
				l.log.Debug().Msg("reclaimed message log segment")
			}
		}
	}
}

func (l *MessageLog) Close() error {
	return l.db.Close()
}
