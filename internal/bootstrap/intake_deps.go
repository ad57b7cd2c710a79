// Package bootstrap wires configuration, adapters and services together.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"intake_server/adapter/out/messaging"
	"intake_server/adapter/out/mongodb"
	"intake_server/adapter/out/persistence"
	"intake_server/adapter/out/provider"
	"intake_server/adapter/out/webhook"
	"intake_server/config"
	"intake_server/core/domain"
	"intake_server/core/llm"
	"intake_server/core/port/in"
	"intake_server/core/port/out"
	"intake_server/core/service/classification"
	"intake_server/core/service/history"
	"intake_server/core/service/intake"
	"intake_server/core/service/signals"
	"intake_server/infra/database"
	"intake_server/pkg/logger"
	"intake_server/pkg/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies holds every wired component of the service.
type Dependencies struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Mongo  *mongo.Client

	// Repositories
	EmailRepo    out.ProcessedEmailRepository
	FeedbackRepo out.FeedbackRepository
	StatsRepo    out.StatsRepository
	HistoryRepo  out.SenderHistoryRepository
	PatternRepo  out.LearnedPatternRepository
	Archive      out.BodyArchive

	// Outbound
	Provider   out.MailboxProvider
	LLM        *llm.Client
	Dispatcher out.ResponseDispatcher
	Notifier   *webhook.Notifier

	// Core
	Rules    *domain.RuleSet
	Taxonomy *domain.Taxonomy
	Tracker  *metrics.StageTracker
	Intake   in.IntakeService
}

// NewDependencies builds the full dependency graph. The returned cleanup
// closes every connection it opened.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Postgres (required: audit trail, feedback, patterns, stats)
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })
	logger.Info("postgres connected")

	deps.EmailRepo = persistence.NewProcessedEmailAdapter(db)
	deps.FeedbackRepo = persistence.NewFeedbackAdapter(db)
	deps.StatsRepo = persistence.NewStatsAdapter(db)
	deps.HistoryRepo = persistence.NewSenderHistoryAdapter(db)
	deps.PatternRepo = persistence.NewLearnedPatternAdapter(db)

	// Redis (draft job queue)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			logger.Info("redis connected")
		}
	}

	// MongoDB (full-body archive for flagged mail)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("mongodb connection failed: %v", err)
		} else {
			deps.Mongo = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			archive := mongodb.NewBodyArchiveAdapter(
				mongoClient.Database(cfg.MongoDBName), cfg.BodyTTLDays)
			if err := archive.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("failed to ensure mongodb indexes: %v", err)
			}
			deps.Archive = archive
			logger.Info("mongodb body archive ready (ttl=%dd)", cfg.BodyTTLDays)
		}
	}

	// Mailbox provider
	factory := provider.NewFactory(&provider.FactoryConfig{
		Graph: &provider.GraphConfig{
			TenantID:     cfg.MicrosoftTenantID,
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
		},
		Gmail: &provider.GmailConfig{
			CredentialsFile: cfg.GoogleCredentialsFile,
		},
	})
	mailbox, err := factory.CreateProvider(context.Background(), cfg.ProviderType)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create mailbox provider: %w", err)
	}
	deps.Provider = mailbox
	logger.Info("mailbox provider ready: %s", mailbox.ProviderName())

	// LLM
	deps.LLM = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	// Webhook notifier (used directly or by the queue consumer)
	deps.Notifier = webhook.NewNotifier(
		cfg.WebhookURL, cfg.WebhookSecret,
		time.Duration(cfg.WebhookTimeoutSec)*time.Second, logger.Default())

	// Dispatcher: queue through Redis when available, else POST inline.
	if cfg.DispatchMode == "queue" && deps.Redis != nil {
		deps.Dispatcher = messaging.NewRedisProducer(deps.Redis)
		logger.Info("draft jobs dispatched via redis stream %s", messaging.StreamDraftJobs)
	} else {
		deps.Dispatcher = deps.Notifier
		logger.Info("draft jobs dispatched directly to webhook")
	}

	// Rule tables and taxonomy
	rules, err := cfg.LoadRules()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Rules = rules
	deps.Taxonomy = cfg.Taxonomy()

	flagLabels := cfg.FlagLabels
	if len(flagLabels) == 0 {
		flagLabels = domain.DefaultFlagLabels
	}
	skipLabels := cfg.SkipLabels
	if len(skipLabels) == 0 {
		skipLabels = domain.DefaultSkipLabels
	}

	// Pipeline
	thresholds := history.DefaultThresholds()
	thresholds.SenderMinEmails = cfg.HistoryMinSenderEmails
	thresholds.DomainMinEmails = cfg.HistoryMinDomainEmails

	deps.Tracker = metrics.NewStageTracker(0)

	deps.Intake = intake.New(intake.Deps{
		Provider:     deps.Provider,
		RuleStage:    classification.NewRuleStage(rules),
		PatternStage: classification.NewPatternStage(deps.PatternRepo, cfg.PatternMinOccurrences),
		AIStage:      classification.NewAIStage(deps.LLM, flagLabels, skipLabels, 0),
		History:      history.NewService(deps.HistoryRepo, thresholds),
		Extractor:    signals.NewEntityExtractor(nil, nil),
		Taxonomy:     deps.Taxonomy,
		Emails:       deps.EmailRepo,
		Feedback:     deps.FeedbackRepo,
		Stats:        deps.StatsRepo,
		Patterns:     deps.PatternRepo,
		Archive:      deps.Archive,
		Dispatch:     deps.Dispatcher,
		Tracker:      deps.Tracker,
		Log:          logger.Default(),
	}, intake.Options{
		Mailboxes:    cfg.Mailboxes,
		PageSize:     cfg.PageSize,
		ThreadWindow: cfg.ThreadWindow,
	})

	return deps, cleanup, nil
}
