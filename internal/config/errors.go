package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: We use package-level sentinel errors so callers can use
// errors.Is while users still get a readable message.
var (
	// ErrNoSeed is returned when no seed address is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one address to crawl")

	// ErrInvalidDepth is returned when the depth is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidPoolSize is returned when a pool size or the per-host limit is not positive.
	ErrInvalidPoolSize = errors.New("invalid concurrency: downloaders, extractors and per-host must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidShutdownGrace is returned when the shutdown grace period is negative.
	ErrInvalidShutdownGrace = errors.New("invalid shutdown grace: must be non-negative")

	// ErrConflictingProxy is returned when both --proxy and --tor are given.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")
)
