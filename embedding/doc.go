// Package embedding turns a source's processed text into chunk files and
// vectors.
//
// Pipeline.ProcessEmbeddings counts tokens locally, applies the embedding
// Policy, chunks the text, writes one file per chunk, embeds the chunks in
// batches and upserts the vectors into the project's namespace. It never
// returns an error: any failure produces an EmbeddingInfo with IsEmbedded
// false and a Reason, and the source stays searchable through its full
// processed text.
//
// Chunk files are written before any vector, so citations never depend on
// the vector store. Stale vectors of the source are deleted by filter before
// the upsert, which makes re-running the pipeline on identical input replace
// the previous vector set exactly.
package embedding
