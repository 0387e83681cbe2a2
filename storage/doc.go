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

// Package storage provides the storage abstraction layer for lectern.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. Source registries and vector stores are swappable:
// BadgerDB backs both by default, and PostgreSQL with pgvector can serve as
// the vector store.
//
// # Architecture
//
//   - SourceRepository: per-project registry of sources and their lifecycle
//   - VectorStore: namespaced chunk embeddings with metadata filtering
//
// Raw uploads, processed text and chunk files live on disk; see storage/files.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	sources, err := badger.NewSourceRepository(backend)
//	vectors, err := badger.NewVectorStore(backend)
//
// Use in tests with in-memory storage:
//
//	sources, vectors, backend, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
