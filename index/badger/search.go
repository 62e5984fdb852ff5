package badger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
)

// Search scans every point of a collection and returns the limit best
// matches under the collection's distance, best first.
func (c *Client) Search(ctx context.Context, name string, vector []float32, limit int) ([]index.ScoredPoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg, err := c.readConfig(name)
	if err != nil {
		return nil, err
	}
	if len(vector) != cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, collection has %d",
			index.ErrDimensionMismatch, len(vector), cfg.Dimension)
	}
	if limit <= 0 {
		return nil, nil
	}

	var results []index.ScoredPoint
	err = c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			id := pointIDFromKey(item.Key())
			err := item.Value(func(val []byte) error {
				stored, payload, err := decodePoint(val)
				if err != nil {
					return err
				}
				results = append(results, index.ScoredPoint{
					ID:      id,
					Score:   score(cfg.Distance, vector, stored),
					Payload: payload,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by score descending
	slices.SortFunc(results, func(a, b index.ScoredPoint) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score rates a stored vector against the query; higher is better.
// Euclidean scores are negated distances.
func score(distance core.Distance, query, stored []float32) float32 {
	switch distance {
	case core.DistanceDot:
		return dotProduct(query, stored)
	case core.DistanceEuclid:
		var sum float32
		for i := range query {
			d := query[i] - stored[i]
			sum += d * d
		}
		return -float32(math.Sqrt(float64(sum)))
	default:
		norm := magnitude(query) * magnitude(stored)
		if norm == 0 {
			return 0
		}
		return dotProduct(query, stored) / norm
	}
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(dotProduct(v, v))))
}
