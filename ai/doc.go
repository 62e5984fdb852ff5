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

// Package ai provides the text embedding abstraction used by the embedding job runner.
//
// The package defines the Embedder interface so that job orchestration depends
// on an abstraction rather than a particular provider.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test double for unit testing without external dependencies
//
// Public constructors (openai.NewEmbedder) return the ai.Embedder interface.
// Test constructors (mock.NewMockEmbedder) return concrete types so tests can
// inject behavior and inspect call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"first", "second"})
package ai
