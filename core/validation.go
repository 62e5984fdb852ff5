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


package core

import (
	"fmt"
	"strings"
)

// ValidateEmbeddingJob validates an EmbeddingJob according to domain rules.
//
// Validation rules:
//   - Status must be valid
//   - Model must not be empty
//   - At least one text column is required
//
// NOT validated (populated by the runner):
//   - Dimension and Rows (zero until the job completes)
//   - ID (0 is valid before a sequence assigns one)
func ValidateEmbeddingJob(job *EmbeddingJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if err := ValidateJobStatus(job.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if strings.TrimSpace(job.Model) == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidJob)
	}

	if len(job.TextColumns) == 0 {
		return fmt.Errorf("%w: at least one text column is required", ErrInvalidJob)
	}

	return nil
}

// ValidateJobStatus validates that a JobStatus has a known value.
func ValidateJobStatus(status JobStatus) error {
	if _, ok := jobStatusNames[status]; !ok {
		return fmt.Errorf("%w: value %d", ErrInvalidJobStatus, status)
	}
	return nil
}

// ValidateCollectionConfig validates a CollectionConfig before it is sent to an index.
func ValidateCollectionConfig(cfg *CollectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidCollection)
	}

	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCollection, ErrEmptyCollectionName)
	}

	if cfg.Dimension <= 0 {
		return fmt.Errorf("%w: %w: got %d", ErrInvalidCollection, ErrInvalidDimension, cfg.Dimension)
	}

	switch cfg.Distance {
	case DistanceCosine, DistanceDot, DistanceEuclid:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidCollection, ErrInvalidDistance, cfg.Distance)
	}

	if cfg.Index.M < 0 {
		return fmt.Errorf("%w: index m cannot be negative", ErrInvalidCollection)
	}

	return nil
}
