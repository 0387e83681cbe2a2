// Package extract turns raw uploads into processed text.
//
// Each supported file extension maps to a Processor in a Registry. A
// processor reads the raw content of one source and returns a
// pagetext.Document: the canonical page-marked text the chunker consumes.
// Sources without natural pages are returned as a single page.
//
// Processors that need an AI service (images, audio) or an external tool
// (PDF) are only registered when that dependency is available, so an
// unsupported extension and an unavailable service look the same to callers:
// ErrUnsupportedType.
package extract
