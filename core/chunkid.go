package core

import (
	"fmt"
	"regexp"
	"strconv"
)

var chunkIDPattern = regexp.MustCompile(`^(.+)_page_([0-9]+)_chunk_([0-9]+)$`)

// FormatChunkID builds the stable chunk id {sourceID}_page_{page}_chunk_{index}.
func FormatChunkID(sourceID string, page, index int) string {
	return fmt.Sprintf("%s_page_%d_chunk_%d", sourceID, page, index)
}

// ParseChunkID splits a chunk id back into its parts.
// Page and index must both be positive.
func ParseChunkID(id string) (sourceID string, page, index int, err error) {
	m := chunkIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidChunkID, id)
	}
	page, err = strconv.Atoi(m[2])
	if err != nil || page < 1 {
		return "", 0, 0, fmt.Errorf("%w: bad page in %q", ErrInvalidChunkID, id)
	}
	index, err = strconv.Atoi(m[3])
	if err != nil || index < 1 {
		return "", 0, 0, fmt.Errorf("%w: bad index in %q", ErrInvalidChunkID, id)
	}
	return m[1], page, index, nil
}
