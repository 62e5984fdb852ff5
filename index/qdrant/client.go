// Package qdrant implements index.Client against the Qdrant gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	qd "github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client talks to one Qdrant server.
type Client struct {
	client  *qd.Client
	timeout time.Duration
	logger  *slog.Logger
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

// NewClient creates a Qdrant client. A nil config uses DefaultConfig.
// Connections are established lazily on the first request.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.Normalize()
	clientConfig, err := config.clientConfig()
	if err != nil {
		return nil, err
	}

	c := &Client{
		timeout: config.Timeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.client, err = qd.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", index.ErrRequestFailed, config.URL, err)
	}
	c.logger = c.logger.With("component", "index", "engine", "qdrant")
	return c, nil
}

// Close tears down the gRPC connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, cfg core.CollectionConfig) error {
	if err := core.ValidateCollectionConfig(&cfg); err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.client.CreateCollection(ctx, toCreateRequest(cfg)); err != nil {
		if alreadyExists(err) {
			return fmt.Errorf("%w: %s", index.ErrCollectionExists, cfg.Name)
		}
		return requestError("create collection", cfg.Name, err)
	}

	c.logger.Info("collection created",
		"collection", cfg.Name,
		"dimension", cfg.Dimension,
		"distance", cfg.Distance,
		"index_m", cfg.Index.M)
	return nil
}

// DeleteCollection deletes a collection. A missing collection is not an error.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	res, err := c.client.GetCollectionsClient().Delete(ctx, &qd.DeleteCollection{CollectionName: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return requestError("delete collection", name, err)
	}
	if !res.GetResult() {
		c.logger.Debug("collection did not exist", "collection", name)
		return nil
	}
	c.logger.Info("collection deleted", "collection", name)
	return nil
}

// GetCollection describes a collection.
func (c *Client) GetCollection(ctx context.Context, name string) (*core.CollectionInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	info, err := c.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, requestError("get collection", name, err)
	}
	return toCollectionInfo(name, info), nil
}

// UpdateCollection changes the HNSW parameters of a collection.
func (c *Client) UpdateCollection(ctx context.Context, name string, params core.IndexParams) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	err := c.client.UpdateCollection(ctx, &qd.UpdateCollection{
		CollectionName: name,
		HnswConfig:     hnswConfig(params),
	})
	if err != nil {
		return requestError("update collection", name, err)
	}

	c.logger.Info("collection index updated",
		"collection", name,
		"index_m", params.M,
		"index_on_disk", params.OnDisk,
		"indexing", params.Enabled())
	return nil
}

// Upload upserts points, one request per sub-batch, with at most
// opts.Parallelism requests in flight. Each request waits for the write
// to be applied.
func (c *Client) Upload(ctx context.Context, name string, batch index.Batch, opts index.UploadOptions) error {
	if err := batch.Validate(0); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	opts = opts.Normalize()

	parts := batch.Split(opts.BatchSize)
	requests := make([][]*qd.PointStruct, len(parts))
	for i, part := range parts {
		points, err := toPoints(part)
		if err != nil {
			return err
		}
		requests[i] = points
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)

	for _, points := range requests {
		g.Go(func() error {
			ctx, cancel := c.withTimeout(gctx)
			defer cancel()
			_, err := c.client.Upsert(ctx, &qd.UpsertPoints{
				CollectionName: name,
				Wait:           qd.PtrOf(true),
				Points:         points,
			})
			if err != nil {
				return requestError(fmt.Sprintf("upsert %d points into", len(points)), name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.logger.Debug("points uploaded", "collection", name, "count", batch.Len())
	return nil
}

// Search runs a nearest-neighbour query.
func (c *Client) Search(ctx context.Context, name string, vector []float32, limit int) ([]index.ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	hits, err := c.client.Query(ctx, &qd.QueryPoints{
		CollectionName: name,
		Query:          qd.NewQueryDense(vector),
		Limit:          qd.PtrOf(uint64(limit)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, requestError("search", name, err)
	}

	results := make([]index.ScoredPoint, len(hits))
	for i, hit := range hits {
		results[i] = index.ScoredPoint{
			ID:      hit.GetId().GetNum(),
			Score:   hit.GetScore(),
			Payload: fromValueMap(hit.GetPayload()),
		}
	}
	return results, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func alreadyExists(err error) bool {
	switch status.Code(err) {
	case codes.AlreadyExists:
		return true
	case codes.InvalidArgument:
		return strings.Contains(status.Convert(err).Message(), "already exists")
	}
	return false
}

// requestError maps a gRPC failure onto the index error sentinels.
func requestError(op, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	return fmt.Errorf("%w: %s %s: %w", index.ErrRequestFailed, op, name, err)
}
