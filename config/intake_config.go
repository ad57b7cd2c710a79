// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"intake_server/core/domain"
)

// generateConsumerID creates a unique consumer ID using hostname and PID
func generateConsumerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "intake"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// API auth
	APIKey string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Mailbox provider
	ProviderType          string
	MicrosoftTenantID     string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	GoogleCredentialsFile string

	// Sweep
	Mailboxes    []string
	PageSize     int
	ThreadWindow int

	// Rules
	InternalDomain  string
	ForwarderSender string
	RulesFile       string

	// Taxonomy
	FlagLabels []string
	SkipLabels []string

	// Learning
	PatternMinOccurrences  int
	HistoryMinSenderEmails int
	HistoryMinDomainEmails int

	// Webhook
	WebhookURL        string
	WebhookSecret     string
	WebhookTimeoutSec int

	// Dispatch: "queue" publishes draft jobs to the Redis stream for the
	// worker to deliver; "direct" POSTs the webhook inline during the sweep.
	DispatchMode string

	// Consumer (Redis Stream)
	ConsumerGroup           string
	ConsumerID              string
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int

	// Archive
	BodyTTLDays int

	// Scheduler
	SchedulerEnabled     bool
	SchedulerIntervalMin int
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "intake"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// API auth
		APIKey: getEnv("API_KEY", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.0),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		// Mailbox provider
		ProviderType:          getEnv("MAIL_PROVIDER", "graph"),
		MicrosoftTenantID:     getEnv("MICROSOFT_TENANT_ID", ""),
		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		// Sweep
		Mailboxes:    getEnvSlice("MAILBOXES", nil),
		PageSize:     getEnvInt("PAGE_SIZE", 50),
		ThreadWindow: getEnvInt("THREAD_WINDOW", 5),

		// Rules
		InternalDomain:  getEnv("INTERNAL_DOMAIN", ""),
		ForwarderSender: getEnv("FORWARDER_SENDER", ""),
		RulesFile:       getEnv("RULES_FILE", ""),

		// Taxonomy
		FlagLabels: getEnvSlice("FLAG_LABELS", nil),
		SkipLabels: getEnvSlice("SKIP_LABELS", nil),

		// Learning
		PatternMinOccurrences:  getEnvInt("PATTERN_MIN_OCCURRENCES", 3),
		HistoryMinSenderEmails: getEnvInt("HISTORY_MIN_SENDER_EMAILS", 2),
		HistoryMinDomainEmails: getEnvInt("HISTORY_MIN_DOMAIN_EMAILS", 5),

		// Webhook
		WebhookURL:        getEnv("RESPONSE_WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("RESPONSE_WEBHOOK_SECRET", ""),
		WebhookTimeoutSec: getEnvInt("WEBHOOK_TIMEOUT_SEC", 5),

		DispatchMode: getEnv("DISPATCH_MODE", "queue"),

		// Consumer
		ConsumerGroup:           getEnv("CONSUMER_GROUP", "intake"),
		ConsumerID:              getEnv("CONSUMER_ID", generateConsumerID()),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),

		// Archive
		BodyTTLDays: getEnvInt("BODY_TTL_DAYS", 90),

		// Scheduler
		SchedulerEnabled:     getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerIntervalMin: getEnvInt("SCHEDULER_INTERVAL_MIN", 5),
	}, nil
}

// LoadRules returns the rule tables: the built-in defaults, overridden by
// the JSON rules file when one is configured.
func (c *Config) LoadRules() (*domain.RuleSet, error) {
	if c.RulesFile == "" {
		return domain.DefaultRuleSet(c.InternalDomain, c.ForwarderSender), nil
	}

	data, err := os.ReadFile(c.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules domain.RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if rules.InternalDomain == "" {
		rules.InternalDomain = c.InternalDomain
	}
	return &rules, nil
}

// Taxonomy returns the label-to-action mapping, honoring env overrides.
func (c *Config) Taxonomy() *domain.Taxonomy {
	if len(c.FlagLabels) == 0 && len(c.SkipLabels) == 0 {
		return domain.DefaultTaxonomy()
	}
	return domain.NewTaxonomy(c.FlagLabels, c.SkipLabels)
}

// SchedulerInterval returns the sweep interval as a duration.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
