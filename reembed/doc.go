// Package reembed rebuilds the chunks and vectors of ready sources from
// their processed text, typically after the embedding model, the chunk
// size or the embedding policy changed.
//
// Sources are visited in batches. Extraction never runs again; each
// source's persisted processed text is fed back through the embedding
// pipeline and its EmbeddingInfo replaced. Progress is reported to a
// writer as sources complete.
package reembed
