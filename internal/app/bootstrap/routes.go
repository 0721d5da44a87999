// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nestforge/missionhub/internal/app/engine"
	"github.com/nestforge/missionhub/internal/app/external/requirements"
	"github.com/nestforge/missionhub/internal/app/external/rewardsink"
	groupsfeature "github.com/nestforge/missionhub/internal/app/features/groups"
	healthfeature "github.com/nestforge/missionhub/internal/app/features/health"
	missionsfeature "github.com/nestforge/missionhub/internal/app/features/missions"
	groupstore "github.com/nestforge/missionhub/internal/app/store/groups"
	notificationstore "github.com/nestforge/missionhub/internal/app/store/notifications"
	pendingstore "github.com/nestforge/missionhub/internal/app/store/pendingjoins"
	rewardstore "github.com/nestforge/missionhub/internal/app/store/rewards"
	templatestore "github.com/nestforge/missionhub/internal/app/store/templates"
	"github.com/nestforge/missionhub/internal/app/system/ratelimit"
	"github.com/nestforge/missionhub/internal/app/system/tasks"
)

// scheduler holds the background job runner between BuildHandler and
// Shutdown. WAFFLE's hook signatures carry no app-owned state beyond
// DBDeps, so the handle lives here.
var scheduler *tasks.Scheduler

// rewardWriter is the Kafka sink, when configured, so Shutdown can
// flush and close it.
var rewardWriter *rewardsink.KafkaSink

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It builds the stores, the coordination
// engine, and the API routers, then starts the background scheduler that
// drives batch matching, deadline sweeps, and reward dispatch.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	var checker requirements.Checker = requirements.AllowAll{}
	if appCfg.RequirementCheckURL != "" {
		checker = requirements.NewHTTPChecker(appCfg.RequirementCheckURL, appCfg.RequirementCheckTimeout)
	}

	var sink rewardsink.Sink = rewardsink.Discard{}
	if appCfg.RewardSink == "kafka" {
		rewardWriter = rewardsink.NewKafkaSink(appCfg.RewardKafkaBrokers, appCfg.RewardKafkaTopic, logger)
		sink = rewardWriter
		logger.Info("reward events will publish to Kafka",
			zap.String("topic", appCfg.RewardKafkaTopic))
	}

	svc := engine.New(engine.Deps{
		Templates:     templatestore.New(db),
		Groups:        groupstore.New(db),
		Pending:       pendingstore.New(db),
		Rewards:       rewardstore.New(db),
		Notifications: notificationstore.New(db),
		Checker:       checker,
		Sink:          sink,
		Log:           logger,
	})

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	missionsHandler := missionsfeature.NewHandler(svc, logger)
	groupsHandler := groupsfeature.NewHandler(svc, groupstore.New(db), logger)

	r.Group(func(api chi.Router) {
		if appCfg.WriteRateLimit > 0 {
			api.Use(ratelimit.Middleware(ratelimit.New(appCfg.WriteRateLimit, time.Minute)))
		}
		api.Mount("/api/missions", missionsfeature.Routes(missionsHandler))
		api.Mount("/api/groups", groupsfeature.Routes(groupsHandler))
	})

	// Background jobs. Each job is idempotent, so restart-after-crash
	// at worst repeats work.
	scheduler = tasks.NewScheduler(logger)
	jobs := []tasks.Job{
		tasks.BatchMatchingJob(svc, logger, appCfg.MatchSweepInterval),
		tasks.DeadlineCheckJob(svc, logger, appCfg.DeadlineSweepInterval),
		tasks.RewardDispatchJob(svc, logger, appCfg.RewardDispatchInterval),
	}
	for _, j := range jobs {
		if err := scheduler.Add(j); err != nil {
			logger.Error("scheduling job failed", zap.String("job", j.Name), zap.Error(err))
			return nil, err
		}
	}
	scheduler.Start()

	return r, nil
}
