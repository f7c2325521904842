// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/go-crypt/x/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/poiesic/lexindex/core"
)

const entryPrefix = "emb:"

// Cache stores computed embedding vectors keyed by a fingerprint of the
// model name and input text. Entries survive process restarts when backed
// by an on-disk database.
type Cache struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	group    singleflight.Group
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache) error

// WithTTL sets an expiry on cache entries. Expired entries are reclaimed by
// the underlying database and recomputed on the next request. A zero TTL
// (the default) keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl < 0 {
			return fmt.Errorf("ttl must not be negative, got %v", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a persistent embedding cache at the given directory.
// Creates the directory if it doesn't exist.
func Open(path string, opts ...Option) (*Cache, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			info, err = os.Stat(path)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	return open(badger.DefaultOptions(path), false, opts...)
}

// OpenInMemory opens a cache that lives only for the process lifetime.
// Useful for tests and short-lived batch jobs.
func OpenInMemory(opts ...Option) (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), true, opts...)
}

func open(badgerOpts badger.Options, inMemory bool, opts ...Option) (*Cache, error) {
	c := &Cache{
		inMemory: inMemory,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "embedding-cache")

	badgerOpts.Logger = &badgerLoggerAdapter{logger: c.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	c.db = db
	return c, nil
}

// Fingerprint derives the cache key for a model/text pair. The same text
// embedded with different models occupies different entries.
func Fingerprint(model, text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return entryPrefix + hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the cached vector for the model/text pair, invoking
// compute on a miss and storing the result. Concurrent requests for the
// same pair share a single compute call.
func (c *Cache) GetOrCompute(ctx context.Context, model, text string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	if compute == nil {
		return nil, ErrNilCompute
	}

	key := Fingerprint(model, text)

	if vector, ok := c.lookup(key); ok {
		return vector, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight lock: another goroutine may have
		// stored the entry while we waited.
		if vector, ok := c.lookup(key); ok {
			return vector, nil
		}

		vector, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if err := c.store(key, vector); err != nil {
			c.logger.Warn("failed to store cache entry", "error", err)
		}
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// Lookup returns the cached vector for the model/text pair, if present.
func (c *Cache) Lookup(model, text string) ([]float32, bool) {
	return c.lookup(Fingerprint(model, text))
}

// Put stores a vector for the model/text pair, overwriting any existing entry.
func (c *Cache) Put(model, text string, vector []float32) error {
	return c.store(Fingerprint(model, text), vector)
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	var vector []float32
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, _, err := core.VectorMUS.Unmarshal(val)
			if err != nil {
				return err
			}
			vector = v
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			// Treat undecodable entries as misses so they get recomputed.
			c.logger.Warn("discarding unreadable cache entry", "error", err)
		}
		return nil, false
	}
	return vector, true
}

func (c *Cache) store(key string, vector []float32) error {
	bs := make([]byte, core.VectorMUS.Size(vector))
	core.VectorMUS.Marshal(vector, bs)

	return c.db.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), bs)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return tx.SetEntry(entry)
	})
}

// Len returns the number of live entries in the cache.
func (c *Cache) Len() (int, error) {
	count := 0
	err := c.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Flush forces pending writes to disk. No-op for in-memory caches.
func (c *Cache) Flush() error {
	if c.inMemory {
		return nil
	}
	return c.db.Sync()
}

// Close flushes and closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
