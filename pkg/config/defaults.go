package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "parkwatch"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultDefaultRadiusKm = 10.0
	DefaultMaxRadiusKm     = 100.0

	// Per-subscriber event buffer. A subscriber that falls this many events
	// behind on a single connection is dropped rather than stalling fan-out.
	DefaultHubClientBacklog = 32

	DefaultRatingRetryQueueSize = 256
	DefaultRatingRetryAttempts  = 3
	DefaultRatingRetryBackoff   = 2 * time.Second
)
