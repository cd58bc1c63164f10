// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

// Package store persists the pieces of engine memory that must outlive the
// process: the settings document (feature flags, thresholds, library
// exclusions) and the durable engine state (recently-added watermark,
// per-user cooldowns, deferred-run queues). Everything lives in a single
// embedded BadgerDB; payloads are JSON documents under prefixed keys.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/logging"
)

// Key prefixes for the document types sharing the database.
const (
	keySettings    = "settings:document"
	keyEngineState = "state:engine"
)

// ErrStoreClosed is returned by operations after Close.
var ErrStoreClosed = errors.New("store is closed")

// Store is the BadgerDB-backed persistence layer. Safe for concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool

	// settings is the in-memory copy of the persisted document. Reads are
	// served from here; writes go through Badger first.
	settings *SettingsDocument
}

// Open opens (or creates) the database at the configured path and loads the
// settings document, seeding it from automation defaults on first run.
func Open(cfg *config.StateConfig, auto *config.AutomationConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		opts.Logger = nil
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{db: db}

	doc, err := s.loadSettings()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if doc == nil {
		doc = defaultSettings(auto)
		if err := s.persistSettings(doc); err != nil {
			_ = db.Close()
			return nil, err
		}
		logging.Info().Msg("Seeded settings document from configuration")
	}
	s.settings = doc

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("State store opened")
	return s, nil
}

// Close flushes and closes the database. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// get reads one key into v, reporting found=false when the key is absent.
func (s *Store) get(key string, v interface{}) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return true, nil
}

// set writes one key as a JSON document.
func (s *Store) set(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
