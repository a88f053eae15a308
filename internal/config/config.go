package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "SNP_WORKER_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	redisURLEnv    = "REDIS_URL"
	queueNameEnv   = "QUEUE_NAME"
	ncbiEmailEnv   = "NCBI_EMAIL"
	ncbiAPIKeyEnv  = "NCBI_API_KEY"
	logLevelEnv    = "LOG_LEVEL"
	portEnv        = "PORT"
)

// Config holds high-level settings required across the worker process.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Queue      QueueConfig      `yaml:"queue"`
	NCBI       NCBIConfig       `yaml:"ncbi"`
	HTTP       HTTPConfig       `yaml:"http"`
	Blast      BlastConfig      `yaml:"blast"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Health     HealthConfig     `yaml:"health"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
}

// QueueConfig describes the Redis job queue and polling cadence.
type QueueConfig struct {
	URL                 string `yaml:"url"`
	Name                string `yaml:"name"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
}

// PollInterval resolves the poll cadence as a duration.
func (q QueueConfig) PollInterval() time.Duration {
	return time.Duration(q.PollIntervalSeconds) * time.Second
}

// NCBIConfig carries the contact identity NCBI requires for its APIs. The
// email is mandatory for BLAST and e-utilities calls; the API key is optional
// but raises rate limits.
type NCBIConfig struct {
	Email  string `yaml:"email"`
	APIKey string `yaml:"apiKey"`
}

// HTTPConfig tunes the shared retrying request layer.
type HTTPConfig struct {
	TimeoutSeconds     int `yaml:"timeoutSeconds"`
	MaxRetries         int `yaml:"maxRetries"`
	BackoffBaseSeconds int `yaml:"backoffBaseSeconds"`
	NCBIConcurrency    int `yaml:"ncbiConcurrency"`
	EnsemblConcurrency int `yaml:"ensemblConcurrency"`
	DefaultConcurrency int `yaml:"defaultConcurrency"`
}

// BlastConfig tunes the submit/poll cycle against the BLAST URL API.
type BlastConfig struct {
	BaseURL             string `yaml:"baseUrl"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
}

// AnnotationConfig tunes the per-job annotation fan-out.
type AnnotationConfig struct {
	BatchSize        int `yaml:"batchSize"`
	BatchPauseMillis int `yaml:"batchPauseMillis"`
	MaxConcurrent    int `yaml:"maxConcurrent"`
}

// BatchPause resolves the inter-batch pause as a duration.
func (a AnnotationConfig) BatchPause() time.Duration {
	return time.Duration(a.BatchPauseMillis) * time.Millisecond
}

// HealthConfig describes the liveness/readiness HTTP surface.
type HealthConfig struct {
	Port string `yaml:"port"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Queue.URL = v
	}

	if v := os.Getenv(queueNameEnv); v != "" {
		c.Queue.Name = v
	}

	if v := os.Getenv(ncbiEmailEnv); v != "" {
		c.NCBI.Email = v
	}

	if v := os.Getenv(ncbiAPIKeyEnv); v != "" {
		c.NCBI.APIKey = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(portEnv); v != "" {
		c.Health.Port = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.MaxOpenConns > 0 {
		base.Database.MaxOpenConns = override.Database.MaxOpenConns
	}

	if override.Queue.URL != "" {
		base.Queue.URL = override.Queue.URL
	}
	if override.Queue.Name != "" {
		base.Queue.Name = override.Queue.Name
	}
	if override.Queue.PollIntervalSeconds > 0 {
		base.Queue.PollIntervalSeconds = override.Queue.PollIntervalSeconds
	}

	if override.NCBI.Email != "" {
		base.NCBI.Email = override.NCBI.Email
	}
	if override.NCBI.APIKey != "" {
		base.NCBI.APIKey = override.NCBI.APIKey
	}

	if override.HTTP.TimeoutSeconds > 0 {
		base.HTTP.TimeoutSeconds = override.HTTP.TimeoutSeconds
	}
	if override.HTTP.MaxRetries > 0 {
		base.HTTP.MaxRetries = override.HTTP.MaxRetries
	}
	if override.HTTP.BackoffBaseSeconds > 0 {
		base.HTTP.BackoffBaseSeconds = override.HTTP.BackoffBaseSeconds
	}
	if override.HTTP.NCBIConcurrency > 0 {
		base.HTTP.NCBIConcurrency = override.HTTP.NCBIConcurrency
	}
	if override.HTTP.EnsemblConcurrency > 0 {
		base.HTTP.EnsemblConcurrency = override.HTTP.EnsemblConcurrency
	}
	if override.HTTP.DefaultConcurrency > 0 {
		base.HTTP.DefaultConcurrency = override.HTTP.DefaultConcurrency
	}

	if override.Blast.BaseURL != "" {
		base.Blast.BaseURL = override.Blast.BaseURL
	}
	if override.Blast.PollIntervalSeconds > 0 {
		base.Blast.PollIntervalSeconds = override.Blast.PollIntervalSeconds
	}
	if override.Blast.TimeoutSeconds > 0 {
		base.Blast.TimeoutSeconds = override.Blast.TimeoutSeconds
	}

	if override.Annotation.BatchSize > 0 {
		base.Annotation.BatchSize = override.Annotation.BatchSize
	}
	if override.Annotation.BatchPauseMillis > 0 {
		base.Annotation.BatchPauseMillis = override.Annotation.BatchPauseMillis
	}
	if override.Annotation.MaxConcurrent > 0 {
		base.Annotation.MaxConcurrent = override.Annotation.MaxConcurrent
	}

	if override.Health.Port != "" {
		base.Health.Port = override.Health.Port
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: "", MaxOpenConns: 5},
		Queue: QueueConfig{
			URL:                 "redis://localhost:6379/0",
			Name:                "snp-analysis-queue",
			PollIntervalSeconds: 5,
		},
		NCBI: NCBIConfig{Email: "", APIKey: ""},
		HTTP: HTTPConfig{
			TimeoutSeconds:     30,
			MaxRetries:         3,
			BackoffBaseSeconds: 1,
			NCBIConcurrency:    3,
			EnsemblConcurrency: 15,
			DefaultConcurrency: 10,
		},
		Blast: BlastConfig{
			BaseURL:             "https://blast.ncbi.nlm.nih.gov/Blast.cgi",
			PollIntervalSeconds: 10,
			TimeoutSeconds:      120,
		},
		Annotation: AnnotationConfig{
			BatchSize:        10,
			BatchPauseMillis: 500,
			MaxConcurrent:    5,
		},
		Health: HealthConfig{Port: "8000"},
	}
}
