// Package ingestion drives sources through their lifecycle.
//
// The Dispatcher stores uploads, registers them as sources and schedules
// one processing task per source. A task extracts processed text with the
// processor registered for the source's extension, hands it to the
// embedding pipeline and walks the source through
//
//	uploaded → processing → embedding → ready
//
// with error as the failure state. Retry and Cancel are accepted only in
// the states the status table allows. Every transition a task makes is
// conditioned on the processing attempt it started, and file writes happen
// under a per-source lock shared with Cancel, so a cancelled or superseded
// task can never publish its results.
package ingestion
