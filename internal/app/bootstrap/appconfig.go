// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (HTTP ports, TLS, logging, CORS); AppConfig is
// everything specific to MissionHub.
//
// The struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown should live here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // 0 means driver default
	MongoMinPoolSize uint64

	// External requirement-check service (NFT ownership, token balances).
	// Blank disables external checks; level and tag gating still apply.
	RequirementCheckURL     string
	RequirementCheckTimeout time.Duration

	// Reward event sink: "outbox" keeps settled events queued in Mongo only;
	// "kafka" additionally publishes each event to the configured topic.
	RewardSink         string
	RewardKafkaBrokers string // comma-separated broker list
	RewardKafkaTopic   string

	// Background job intervals
	MatchSweepInterval     time.Duration // pending-join batch matching
	DeadlineSweepInterval  time.Duration // mission deadline failure sweep
	RewardDispatchInterval time.Duration // reward outbox dispatch

	// WriteRateLimit caps mutating API requests per caller per minute.
	// 0 disables the limiter.
	WriteRateLimit int
}
