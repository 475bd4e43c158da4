// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package issues

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
)

const issueKeyPrefix = "issue:"

// Cache TTLs. A valid issue rarely disappears, so positive entries live a
// day. A missing issue may simply not exist yet (typed ahead of creation),
// so negative entries expire quickly.
const (
	validTTL   = 24 * time.Hour
	invalidTTL = 5 * time.Minute
)

// Cache is a BadgerDB-backed store for issue validation results.
type Cache struct {
	db *badger.DB
}

// OpenCache opens the validation cache at path. An empty path selects an
// in-memory cache that does not survive restart.
func OpenCache(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Badger logs through its own logger by default; route it to ours.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open issue cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached validation result for an issue key, or false.
func (c *Cache) Get(issueKey string) (*models.ValidateIssueResponse, bool) {
	var resp models.ValidateIssueResponse
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(issueKeyPrefix + issueKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &resp)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Warn().Str("issue_key", issueKey).Err(err).Msg("Issue cache read failed")
		}
		metrics.IssueCacheMisses.Inc()
		return nil, false
	}
	metrics.IssueCacheHits.Inc()
	return &resp, true
}

// Set stores a validation result with the TTL matching its validity.
func (c *Cache) Set(issueKey string, resp *models.ValidateIssueResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}
	ttl := validTTL
	if !resp.Valid {
		ttl = invalidTTL
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(issueKeyPrefix+issueKey), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Invalidate drops the cached result for an issue key. Dropping a missing
// key is not an error.
func (c *Cache) Invalidate(issueKey string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(issueKeyPrefix + issueKey))
	})
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// badgerLogger adapts badger's logger interface to zerolog. Badger is
// chatty at INFO; its operational detail maps to our debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}
