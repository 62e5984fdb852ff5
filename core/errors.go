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

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates an EmbeddingJob failed validation.
	ErrInvalidJob = errors.New("invalid embedding job")

	// ErrInvalidJobStatus indicates an unknown JobStatus value.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidCollection indicates a CollectionConfig failed validation.
	ErrInvalidCollection = errors.New("invalid collection config")

	// ErrEmptyCollectionName indicates the collection Name field is empty.
	ErrEmptyCollectionName = errors.New("collection name cannot be empty")

	// ErrInvalidDimension indicates a non-positive vector dimension.
	ErrInvalidDimension = errors.New("dimension must be greater than 0")

	// ErrInvalidDistance indicates an unknown distance metric.
	ErrInvalidDistance = errors.New("invalid distance metric")
)
