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
	// ErrInvalidSource indicates a Source failed validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrEmptyProjectID indicates the ProjectID field is empty.
	ErrEmptyProjectID = errors.New("project id cannot be empty")

	// ErrInvalidProjectID indicates a project id that cannot name a
	// directory or a storage namespace.
	ErrInvalidProjectID = errors.New("invalid project id")

	// ErrEmptySourceID indicates the ID field is empty.
	ErrEmptySourceID = errors.New("source id cannot be empty")

	// ErrEmptySourceName indicates the Name field is empty.
	ErrEmptySourceName = errors.New("source name cannot be empty")

	// ErrInvalidStatus indicates an unknown SourceStatus value.
	ErrInvalidStatus = errors.New("invalid source status")

	// ErrInvalidTransition indicates an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidChunkID indicates a string that is not a chunk id.
	ErrInvalidChunkID = errors.New("invalid chunk id")
)
