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

package search

import "errors"

var (
	// ErrSourceRepositoryRequired is returned when a source repository is not provided.
	ErrSourceRepositoryRequired = errors.New("source repository required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrLayoutRequired is returned when a file layout is not provided.
	ErrLayoutRequired = errors.New("file layout required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSourceNotFound is returned when the source does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceNotReady is returned when the source has not finished processing.
	ErrSourceNotReady = errors.New("source not ready")

	// ErrSourceInactive is returned when the source has been deactivated.
	ErrSourceInactive = errors.New("source inactive")

	// ErrQueryRequired is returned when an embedded source is searched without a query.
	ErrQueryRequired = errors.New("query required for semantic search")

	// ErrCitationNotFound is returned when a citation token names no persisted chunk.
	ErrCitationNotFound = errors.New("citation not found")
)
