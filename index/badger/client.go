// Package badger implements index.Client on top of BadgerDB.
//
// Collections and points share one BadgerDB database. Each point is keyed by
// its collection and big-endian id, so re-uploading an id overwrites it.
// Index parameters are recorded with the collection; search is exhaustive.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	store "github.com/poiesic/vecload/storage/badger"
)

// Client is an embedded index.Client.
type Client struct {
	backend     *store.Backend
	ownsBackend bool
	logger      *slog.Logger
	// mu serializes collection lifecycle changes; uploads take it shared.
	mu sync.RWMutex
}

var (
	_ index.Client   = (*Client)(nil)
	_ index.Searcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a client over an existing backend.
// The backend stays owned by the caller.
func NewClient(backend *store.Backend, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	c := &Client{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "index", "engine", "badger")
	return c, nil
}

// Open opens (or creates) an index database at path and returns a client
// that closes it on Close. An empty path opens an in-memory database.
func Open(path string, opts ...Option) (*Client, error) {
	backend, err := store.OpenBackend(path, path == "")
	if err != nil {
		return nil, err
	}
	c, err := NewClient(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	c.ownsBackend = true
	return c, nil
}

// Close closes the backend when the client opened it.
func (c *Client) Close() error {
	if c.ownsBackend {
		return c.backend.Close()
	}
	return nil
}

// CreateCollection stores a new collection configuration.
func (c *Client) CreateCollection(ctx context.Context, cfg core.CollectionConfig) error {
	if err := core.ValidateCollectionConfig(&cfg); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(cfg.Name)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: %s", index.ErrCollectionExists, cfg.Name)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(key, marshalConfig(cfg)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	c.logger.Info("collection created",
		"collection", cfg.Name,
		"dimension", cfg.Dimension,
		"distance", cfg.Distance,
		"index_m", cfg.Index.M)
	return nil
}

// DeleteCollection removes a collection and all of its points.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCollectionKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	if err := c.backend.DropPrefix(makePointPrefix(name)); err != nil {
		return err
	}

	c.logger.Info("collection deleted", "collection", name)
	return nil
}

// GetCollection returns the configuration and point count of a collection.
func (c *Client) GetCollection(ctx context.Context, name string) (*core.CollectionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, err := c.readConfig(name)
	if err != nil {
		return nil, err
	}
	count, err := c.backend.CountPrefix(makePointPrefix(name))
	if err != nil {
		return nil, err
	}
	return &core.CollectionInfo{Config: *cfg, PointCount: count}, nil
}

// UpdateCollection records new index build parameters.
func (c *Client) UpdateCollection(ctx context.Context, name string, params core.IndexParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		cfg, err := readConfigTx(tx, name)
		if err != nil {
			return err
		}
		cfg.Index = params
		if err := tx.Set(makeCollectionKey(name), marshalConfig(*cfg)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	c.logger.Info("collection index updated",
		"collection", name,
		"index_m", params.M,
		"index_on_disk", params.OnDisk,
		"indexing", params.Enabled())
	return nil
}

// Upload writes the batch's points in sub-batches on a worker pool.
func (c *Client) Upload(ctx context.Context, name string, batch index.Batch, opts index.UploadOptions) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, err := c.readConfig(name)
	if err != nil {
		return err
	}
	if err := batch.Validate(cfg.Dimension); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}

	opts = opts.Normalize()
	pool, err := ants.NewPool(opts.Parallelism)
	if err != nil {
		return err
	}
	defer pool.Release()

	prefix := makePointPrefix(name)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	recordErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, part := range batch.Split(opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			recordErr(err)
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := c.writePoints(prefix, part); err != nil {
				recordErr(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			recordErr(submitErr)
			break
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("upload to %s: %w", name, errors.Join(errs...))
	}
	c.logger.Debug("points uploaded", "collection", name, "count", batch.Len())
	return nil
}

// writePoints stores one sub-batch with a write batch.
func (c *Client) writePoints(prefix []byte, part index.Batch) error {
	wb := c.backend.NewWriteBatch()
	for i, id := range part.Ids {
		value, err := encodePoint(part.Vectors[i], part.Payload(i))
		if err != nil {
			wb.Cancel()
			return err
		}
		if err := wb.Set(makePointKey(prefix, id), value); err != nil {
			wb.Cancel()
			return err
		}
	}
	return wb.Flush()
}

// readConfig reads a collection's configuration in its own transaction.
func (c *Client) readConfig(name string) (*core.CollectionConfig, error) {
	var cfg *core.CollectionConfig
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		cfg, err = readConfigTx(tx, name)
		return err
	}, false)
	return cfg, err
}

func readConfigTx(tx *badger.Txn, name string) (*core.CollectionConfig, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
		}
		return nil, err
	}
	var cfg core.CollectionConfig
	err = item.Value(func(val []byte) error {
		var err error
		cfg, _, err = core.CollectionConfigMUS.Unmarshal(val)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return &cfg, nil
}

func marshalConfig(cfg core.CollectionConfig) []byte {
	buf := make([]byte, core.CollectionConfigMUS.Size(cfg))
	core.CollectionConfigMUS.Marshal(cfg, buf)
	return buf
}
