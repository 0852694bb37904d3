package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvDefaultRadiusKm = "DEFAULT_RADIUS_KM"
	EnvMaxRadiusKm     = "MAX_RADIUS_KM"

	EnvHubClientBacklog = "HUB_CLIENT_BACKLOG"

	EnvRatingRetryQueueSize = "RATING_RETRY_QUEUE_SIZE"
	EnvRatingRetryAttempts  = "RATING_RETRY_ATTEMPTS"
	EnvRatingRetryBackoff   = "RATING_RETRY_BACKOFF"
)
