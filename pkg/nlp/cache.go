package nlp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/graphfuse/pkg/types"
)

// CacheConfig configures a CachedClient.
type CacheConfig struct {
	// Dir is the badger directory. Empty with InMemory false is an error.
	Dir string
	// InMemory keeps the cache in memory only.
	InMemory bool
	// TTL expires entries after the given duration. Zero keeps them forever.
	TTL time.Duration
	// Namespace separates cache entries of different models or prompt versions.
	Namespace string
	Logger    *slog.Logger
}

// CacheStats counts cache lookups.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// CachedClient replays earlier oracle answers for identical requests. Only
// successful responses are stored.
type CachedClient struct {
	client    Client
	db        *badger.DB
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCachedClient opens the badger store and wraps client.
func NewCachedClient(client Client, cfg CacheConfig) (*CachedClient, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("cache directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open oracle cache: %w", err)
	}

	return &CachedClient{
		client:    client,
		db:        db,
		ttl:       cfg.TTL,
		namespace: cfg.Namespace,
		logger:    logger,
	}, nil
}

// cacheKey hashes the namespace and the full message list.
func (c *CachedClient) cacheKey(messages []types.Message) ([]byte, error) {
	h := sha256.New()
	h.Write([]byte(c.namespace))
	h.Write([]byte{0})
	if err := json.NewEncoder(h).Encode(messages); err != nil {
		return nil, err
	}
	return []byte("oracle/" + hex.EncodeToString(h.Sum(nil))), nil
}

// Chat returns the cached response for messages or calls the wrapped client.
func (c *CachedClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	key, err := c.cacheKey(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache key: %w", err)
	}

	if resp, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return resp, nil
	}
	c.misses.Add(1)

	resp, err := c.client.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	if err := c.store(key, resp); err != nil {
		c.logger.Warn("Failed to cache oracle response", "error", err)
	}
	return resp, nil
}

func (c *CachedClient) lookup(key []byte) (*types.Response, bool) {
	var resp types.Response
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &resp)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("Failed to read oracle cache", "error", err)
		}
		return nil, false
	}
	return &resp, true
}

func (c *CachedClient) store(key []byte, resp *types.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Stats returns the hit and miss counts since the client was created.
func (c *CachedClient) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close closes the badger store and the wrapped client.
func (c *CachedClient) Close() error {
	dbErr := c.db.Close()
	if err := c.client.Close(); err != nil {
		return err
	}
	return dbErr
}
