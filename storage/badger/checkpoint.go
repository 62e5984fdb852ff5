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


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// SaveCheckpoint persists a checkpoint for a job and collection.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.LoadCheckpoint) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		key := makeCheckpointKey(checkpoint.JobID, checkpoint.Collection)
		if err := tx.Set(key, storage.MarshalCheckpoint(checkpoint)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the checkpoint for a job and collection.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, jobID core.JobID, collection string) (*core.LoadCheckpoint, error) {
	var checkpoint *core.LoadCheckpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCheckpointKey(jobID, collection)
		item, err := tx.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
			return unmarshalErr
		})
	}, false)

	return checkpoint, err
}

// DeleteCheckpoint removes the checkpoint for a job and collection.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, jobID core.JobID, collection string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(jobID, collection)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteCollectionCheckpoints removes the checkpoints of every job loaded
// into collection.
func (r *CheckpointRepository) DeleteCollectionCheckpoints(ctx context.Context, collection string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeCheckpointPrefix(collection)

		var keys [][]byte
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}
