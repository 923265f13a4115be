package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in configuration.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	ServiceID string

	Backend     string
	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	KafkaBrokers             []string
	KafkaConsumerGroup       string
	KafkaTopicProcessEvents  string
	KafkaTopicUserTaskEvents string
	KafkaTopicJobEvents      string

	ConsumerPollInterval time.Duration
	QueryPageSize        int
	UpsertMaxAttempts    int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	NotifyBuffer         int
}

type configFile struct {
	Service struct {
		ID string `yaml:"id"`
	} `yaml:"service"`
	Storage struct {
		Backend     string `yaml:"backend"`
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		MaxDBConns  int    `yaml:"max_db_conns"`
		PageSize    int    `yaml:"page_size"`
	} `yaml:"storage"`
	Events struct {
		KafkaBrokers       []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`
		TopicProcesses     string   `yaml:"topic_processes"`
		TopicUserTasks     string   `yaml:"topic_user_tasks"`
		TopicJobs          string   `yaml:"topic_jobs"`
		PollSeconds        int      `yaml:"poll_seconds"`
	} `yaml:"events"`
	Index struct {
		UpsertMaxAttempts int `yaml:"upsert_max_attempts"`
		RetryInitialMS    int `yaml:"retry_initial_ms"`
		RetryMaxMS        int `yaml:"retry_max_ms"`
		NotifyBuffer      int `yaml:"notify_buffer"`
	} `yaml:"index"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                "procindex",
		Backend:                  BackendMemory,
		MaxDBConns:               20,
		KafkaConsumerGroup:       "procindex",
		KafkaTopicProcessEvents:  "process.instances",
		KafkaTopicUserTaskEvents: "process.usertasks",
		KafkaTopicJobEvents:      "process.jobs",
		ConsumerPollInterval:     500 * time.Millisecond,
		QueryPageSize:            100,
		UpsertMaxAttempts:        5,
		RetryInitialInterval:     50 * time.Millisecond,
		RetryMaxInterval:         2 * time.Second,
		NotifyBuffer:             64,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Storage.Backend != "" {
			cfg.Backend = f.Storage.Backend
		}
		if f.Storage.PostgresURL != "" {
			cfg.DatabaseURL = f.Storage.PostgresURL
		}
		if f.Storage.RedisURL != "" {
			cfg.RedisURL = f.Storage.RedisURL
		}
		if f.Storage.MaxDBConns > 0 {
			cfg.MaxDBConns = int32(f.Storage.MaxDBConns)
		}
		if f.Storage.PageSize > 0 {
			cfg.QueryPageSize = f.Storage.PageSize
		}
		if len(f.Events.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Events.KafkaBrokers)
		}
		if f.Events.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Events.KafkaConsumerGroup
		}
		if f.Events.TopicProcesses != "" {
			cfg.KafkaTopicProcessEvents = f.Events.TopicProcesses
		}
		if f.Events.TopicUserTasks != "" {
			cfg.KafkaTopicUserTaskEvents = f.Events.TopicUserTasks
		}
		if f.Events.TopicJobs != "" {
			cfg.KafkaTopicJobEvents = f.Events.TopicJobs
		}
		if f.Events.PollSeconds > 0 {
			cfg.ConsumerPollInterval = time.Duration(f.Events.PollSeconds) * time.Second
		}
		if f.Index.UpsertMaxAttempts > 0 {
			cfg.UpsertMaxAttempts = f.Index.UpsertMaxAttempts
		}
		if f.Index.RetryInitialMS > 0 {
			cfg.RetryInitialInterval = time.Duration(f.Index.RetryInitialMS) * time.Millisecond
		}
		if f.Index.RetryMaxMS > 0 {
			cfg.RetryMaxInterval = time.Duration(f.Index.RetryMaxMS) * time.Millisecond
		}
		if f.Index.NotifyBuffer > 0 {
			cfg.NotifyBuffer = f.Index.NotifyBuffer
		}
	}

	cfg.Backend = strings.ToLower(envOrDefault("STORAGE_BACKEND", cfg.Backend))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicProcessEvents = envOrDefault("KAFKA_TOPIC_PROCESSES", cfg.KafkaTopicProcessEvents)
	cfg.KafkaTopicUserTaskEvents = envOrDefault("KAFKA_TOPIC_USERTASKS", cfg.KafkaTopicUserTaskEvents)
	cfg.KafkaTopicJobEvents = envOrDefault("KAFKA_TOPIC_JOBS", cfg.KafkaTopicJobEvents)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_MS", int(cfg.ConsumerPollInterval.Milliseconds()))) * time.Millisecond
	cfg.QueryPageSize = envInt("QUERY_PAGE_SIZE", cfg.QueryPageSize)
	cfg.UpsertMaxAttempts = envInt("UPSERT_MAX_ATTEMPTS", cfg.UpsertMaxAttempts)
	cfg.RetryInitialInterval = time.Duration(envInt("RETRY_INITIAL_MS", int(cfg.RetryInitialInterval.Milliseconds()))) * time.Millisecond
	cfg.RetryMaxInterval = time.Duration(envInt("RETRY_MAX_MS", int(cfg.RetryMaxInterval.Milliseconds()))) * time.Millisecond
	cfg.NotifyBuffer = envInt("NOTIFY_BUFFER", cfg.NotifyBuffer)

	switch cfg.Backend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("backend %q requires DB_URL/POSTGRES_URL", cfg.Backend)
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("backend %q requires REDIS_URL", cfg.Backend)
		}
	case BackendMemory:
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
