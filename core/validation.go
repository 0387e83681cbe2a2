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

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - ID and Name must not be empty
//   - ProjectID must pass ValidateProjectID
//   - Status must be a known status
//   - FileExtension must not contain a path separator
//
// NOT validated (populated by processors):
//   - EmbeddingInfo, SummaryInfo
//   - ProcessingInfo
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}
	if source.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptySourceID)
	}
	if err := ValidateProjectID(source.ProjectID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if source.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptySourceName)
	}
	if !source.Status.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidSource, ErrInvalidStatus, source.Status)
	}
	if strings.ContainsAny(source.FileExtension, `/\`) {
		return fmt.Errorf("%w: file extension %q", ErrInvalidSource, source.FileExtension)
	}
	return nil
}

// ValidateProjectID checks that id can serve as a directory name and as a
// vector namespace: it must be non-empty, must not be "." or "..", and must
// not contain a path separator or a colon.
func ValidateProjectID(id string) error {
	if id == "" {
		return ErrEmptyProjectID
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, id)
	}
	return nil
}

// NormalizeExtension lowercases an extension and strips any leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
