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

// Package openai provides an ai.Embedder backed by OpenAI-compatible APIs.
//
// The embedder uses the langchaingo library to talk to OpenAI or compatible
// services (Ollama, LocalAI, vLLM).
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("https://api.openai.com/v1"),
//	    ai.WithEmbeddingModel("text-embedding-3-small"),
//	    ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, texts)
package openai
