package context

// CTXKey - a type for context keys
type CTXKey string

const (
	// ServiceKey - the key used for service context
	ServiceKey CTXKey = "service"
	// EnvironmentCTXKey - the environment the service runs in (local, development, production)
	EnvironmentCTXKey CTXKey = "environment"
	// DebugLoggingCTXKey - context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - context key for the log level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - context key overriding the log writer (used in tests)
	LogWriterCTXKey CTXKey = "log_writer"
	// DatastoreCTXKey - the context key for getting the datastore
	DatastoreCTXKey CTXKey = "datastore"
	// DatabaseURLCTXKey - context key for the database url
	DatabaseURLCTXKey CTXKey = "database_url"
	// DatabaseMigrationsURLCTXKey - context key for the migrations source url
	DatabaseMigrationsURLCTXKey CTXKey = "database_migrations_url"
	// AddrCTXKey - context key for the server listen address
	AddrCTXKey CTXKey = "addr"
	// VersionCTXKey - context key for version of code
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - context key for the commit of the code
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - context key for the build time of code
	BuildTimeCTXKey CTXKey = "build_time"
	// StripeSecretCTXKey - context key for the stripe api secret
	StripeSecretCTXKey CTXKey = "stripe_secret"
	// RateLimitPerMinuteCTXKey - context key for the rate limit per minute
	RateLimitPerMinuteCTXKey CTXKey = "rate_limit_per_minute"
)
