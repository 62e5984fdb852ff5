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


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/vecload/core"
)

// MarshalJobID serializes a JobID to bytes.
func MarshalJobID(id core.JobID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalJobID deserializes a JobID from bytes.
func UnmarshalJobID(data []byte) (core.JobID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: job id needs 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.JobID(binary.BigEndian.Uint64(data)), nil
}

// MarshalJob serializes an EmbeddingJob to bytes.
func MarshalJob(job *core.EmbeddingJob) []byte {
	buf := make([]byte, core.EmbeddingJobMUS.Size(*job))
	core.EmbeddingJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes an EmbeddingJob from bytes.
func UnmarshalJob(data []byte) (*core.EmbeddingJob, error) {
	job, _, err := core.EmbeddingJobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: job: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}

// MarshalCheckpoint serializes a LoadCheckpoint to bytes.
func MarshalCheckpoint(checkpoint *core.LoadCheckpoint) []byte {
	buf := make([]byte, core.LoadCheckpointMUS.Size(*checkpoint))
	core.LoadCheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a LoadCheckpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.LoadCheckpoint, error) {
	checkpoint, _, err := core.LoadCheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
