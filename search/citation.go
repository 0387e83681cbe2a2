package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/pagetext"
	"github.com/poiesic/lectern/storage/files"
)

// ResolveCitation maps a citation token back to the persisted chunk it
// names. The token is a chunk id, optionally wrapped in square brackets.
//
// Malformed tokens, missing chunk files and chunk files that no longer
// carry the cited id or page all return ErrCitationNotFound.
func (s *Searcher) ResolveCitation(ctx context.Context, projectID, token string) (*core.Citation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	token = strings.TrimSuffix(strings.TrimPrefix(token, "["), "]")

	sourceID, page, index, err := core.ParseChunkID(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCitationNotFound, err)
	}

	content, err := s.layout.ReadChunk(projectID, sourceID, index)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, files.ErrInvalidPathSegment) {
		return nil, fmt.Errorf("%w: %s", ErrCitationNotFound, token)
	}
	if err != nil {
		s.logger.Error("error reading chunk file", "project", projectID, "chunk", token, "err", err)
		return nil, err
	}

	chunk, err := pagetext.ParseChunkFile(content)
	if err != nil {
		s.logger.Warn("unreadable chunk file", "project", projectID, "chunk", token, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrCitationNotFound, token)
	}
	// A reprocessed source may reuse the file name for a different chunk.
	if chunk.ChunkID != token || chunk.Page != page {
		return nil, fmt.Errorf("%w: %s", ErrCitationNotFound, token)
	}

	return &core.Citation{
		ChunkID:    chunk.ChunkID,
		SourceID:   sourceID,
		SourceName: chunk.Header[pagetext.KeySource],
		PageNumber: chunk.Page,
		Text:       chunk.Text,
	}, nil
}
