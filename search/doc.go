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

// Package search retrieves source content for a conversational layer and
// resolves citations back to the chunks they name.
//
// The Searcher answers a request against one source in one of two ways:
//   - Full content: a source that was not embedded returns its processed
//     text verbatim
//   - Semantic: an embedded source embeds the query and returns the top-k
//     most similar chunks of that source from the project's namespace
//
// Citation resolution reads persisted chunk files only. It never consults
// the vector store, so it keeps working when the index drifts.
package search
