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


// Package storage provides the persistence abstraction for embedding job records.
//
// The JobRepository interface decouples the job lifecycle from the storage
// backend. The loader reads job status through it (as its readiness gate) and
// the embedding runner writes status transitions through it.
//
// # Usage
//
// Create a repository instance:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	jobs, err := badger.NewJobRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer jobs.Close()
//
// Use in tests with in-memory storage:
//
//	jobs, backend, err := badger.NewMemoryJobRepository()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
