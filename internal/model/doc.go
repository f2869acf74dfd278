// Package model defines the data structures shared by the crawler's
// pipeline, storage and report packages.
//
//   - CrawlReport: the outcome of crawling one seed
//   - Failure: an address that could not be fetched and why
//   - Comparison: the difference between two runs of the same seed
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, database and report packages all need these
// types.
//
// The models serialize to JSON for report output and database storage.
package model
