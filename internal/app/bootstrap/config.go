// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for MissionHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, reward_sink, etc.
//   - Environment variables: MISSIONHUB_MONGO_URI, MISSIONHUB_REWARD_SINK, etc.
//   - Command-line flags: --mongo_uri, --reward_sink, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "mission_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// External requirement verification (NFT ownership, token balances)
	{Name: "requirement_check_url", Default: "", Desc: "Base URL of the requirement verification service (blank disables external checks)"},
	{Name: "requirement_check_timeout", Default: "5s", Desc: "Timeout for requirement verification calls (e.g., 5s, 10s)"},

	// Reward event delivery
	{Name: "reward_sink", Default: "outbox", Desc: "Reward event sink: 'outbox' (Mongo queue only) or 'kafka'"},
	{Name: "reward_kafka_brokers", Default: "localhost:9092", Desc: "Comma-separated Kafka broker list"},
	{Name: "reward_kafka_topic", Default: "mission-rewards", Desc: "Kafka topic for reward events"},

	// Background job intervals
	{Name: "match_sweep_interval", Default: "1m", Desc: "Interval for the pending-join batch matching sweep"},
	{Name: "deadline_sweep_interval", Default: "5m", Desc: "Interval for the mission deadline failure sweep"},
	{Name: "reward_dispatch_interval", Default: "30s", Desc: "Interval for the reward outbox dispatch job"},

	{Name: "write_rate_limit", Default: 120, Desc: "Max mutating API requests per caller per minute (0 disables)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app and can be extended as the app grows.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, MISSIONHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MISSIONHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RequirementCheckURL:     appValues.String("requirement_check_url"),
		RequirementCheckTimeout: appValues.Duration("requirement_check_timeout", 5*time.Second),

		RewardSink:         appValues.String("reward_sink"),
		RewardKafkaBrokers: appValues.String("reward_kafka_brokers"),
		RewardKafkaTopic:   appValues.String("reward_kafka_topic"),

		MatchSweepInterval:     appValues.Duration("match_sweep_interval", time.Minute),
		DeadlineSweepInterval:  appValues.Duration("deadline_sweep_interval", 5*time.Minute),
		RewardDispatchInterval: appValues.Duration("reward_dispatch_interval", 30*time.Second),

		WriteRateLimit: appValues.Int("write_rate_limit"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
//
// MissionHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.RewardSink {
	case "outbox", "kafka":
	default:
		return fmt.Errorf("reward_sink must be 'outbox' or 'kafka', got %q", appCfg.RewardSink)
	}
	if appCfg.RewardSink == "kafka" && appCfg.RewardKafkaBrokers == "" {
		return fmt.Errorf("reward_sink 'kafka' requires reward_kafka_brokers to be set")
	}

	return nil
}
