// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	notificationstore "github.com/nestforge/missionhub/internal/app/store/notifications"
	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	rewardstore "github.com/nestforge/missionhub/internal/app/store/rewards"
	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
)

// ConnectDB establishes the MongoDB connection used by all stores.
//
// The client is verified with a ping before startup continues so that a
// bad URI or unreachable server fails fast instead of surfacing as
// request-time errors.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes each store depends on.
//
// Index creation is idempotent, so this runs on every startup. The unique
// index on reward event IDs in particular must exist before the engine
// settles any rewards, since settlement idempotency depends on it.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	ensure := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"mission_templates", templatestore.New(db).EnsureIndexes},
		{"groups", groupstore.New(db).EnsureIndexes},
		{"pending_joins", pendingstore.New(db).EnsureIndexes},
		{"reward_events", rewardstore.New(db).EnsureIndexes},
		{"notifications", notificationstore.New(db).EnsureIndexes},
	}
	for _, e := range ensure {
		if err := e.fn(ctx); err != nil {
			return fmt.Errorf("ensure indexes for %s: %w", e.name, err)
		}
	}

	logger.Info("database indexes ensured")
	return nil
}
