// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// Spool keeps the raw chunks of each session in an in-memory Badger
// store so a failed consumer can replay a stream without re-fetching
// from the upstream.
//
// # Thread Safety
//
// Safe for concurrent use across sessions and within one.
type Spool struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenSpool opens an in-memory chunk store. Badger's own logging is
// routed through the given logger at debug level, or silenced when nil.
func OpenSpool(logger *slog.Logger) (*Spool, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	if logger != nil {
		opts = opts.WithLogger(&spoolLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open chunk spool: %w", err)
	}
	return &Spool{db: db}, nil
}

// Put stores one chunk under the session. Chunks replay in chunk-id
// order regardless of insertion order.
func (s *Spool) Put(sessionID string, chunk *Chunk) error {
	if s.closed.Load() {
		return ErrSpoolClosed
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk %d: %w", chunk.ChunkID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(spoolKey(sessionID, chunk.ChunkID), data)
	})
}

// Replay invokes handle for every stored chunk of the session in
// chunk-id order, preamble first. A non-nil return stops the replay.
func (s *Spool) Replay(sessionID string, handle func(*Chunk) error) error {
	if s.closed.Load() {
		return ErrSpoolClosed
	}
	prefix := []byte("spool/" + sessionID + "/")
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var chunk Chunk
				if err := json.Unmarshal(val, &chunk); err != nil {
					return fmt.Errorf("%w: %v", ErrMalformedChunk, err)
				}
				return handle(&chunk)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear drops every chunk stored for the session.
func (s *Spool) Clear(sessionID string) error {
	if s.closed.Load() {
		return ErrSpoolClosed
	}
	prefix := []byte("spool/" + sessionID + "/")
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the store. Idempotent.
func (s *Spool) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// spoolKey orders the preamble (chunk id -1) before data chunks by
// shifting ids up by one in the key space.
func spoolKey(sessionID string, chunkID int) []byte {
	return []byte(fmt.Sprintf("spool/%s/%010d", sessionID, chunkID+1))
}

// spoolLogger adapts slog to Badger's logger interface.
type spoolLogger struct {
	logger *slog.Logger
}

func (l *spoolLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *spoolLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *spoolLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *spoolLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
