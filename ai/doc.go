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

// Package ai provides abstractions for the AI services Lectern depends on.
//
// # Interfaces
//
//   - Embedder: turns chunk text and queries into vectors
//   - Summarizer: writes a short summary and key topics for a ready source
//   - ImageExtractor: describes images and reads the text in them
//   - Transcriber: converts audio recordings into text
//   - AIProvider: aggregates the above for convenient initialization
//
// Only the Embedder is mandatory. A provider configured without a chat,
// vision or transcription model returns nil for that service, and the
// ingestion layer skips the work that needs it.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (Ollama, LocalAI, vLLM, OpenAI)
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and count calls.
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
package ai
