// Package pipeline runs the processing of a seed as a sequence of steps.
//
// The default pipeline crawls the seed (CrawlStep), then compares the
// outcome with the previous run of the same seed and stores it
// (HistoryStep). BatchProcessor runs pipelines for several seeds
// concurrently with errgroup; all of them share a single crawler, so its
// global and per-host limits apply across the batch.
//
// Cancellation is checked between steps. A crawl interrupted by its context
// keeps its partial result in the report, is marked Interrupted and is not
// saved to history.
package pipeline
