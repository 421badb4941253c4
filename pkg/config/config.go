// Package config loads and validates evaluation configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (data layout, BM25, evaluation, sources, Postgres, Redis, Kafka,
// logging, metrics, query expansion and fold splitting).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	BM25       BM25Config       `yaml:"bm25"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Source     SourceConfig     `yaml:"source"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Split      SplitConfig      `yaml:"split"`
}

// DataConfig describes where fold files live and how they are read.
type DataConfig struct {
	DataDir     string `yaml:"dataDir"`
	ResultsDir  string `yaml:"resultsDir"`
	TrainMethod string `yaml:"trainMethod"`
	Folds       int    `yaml:"folds"`
	Strict      bool   `yaml:"strict"`
}

// BM25Config holds the scoring constants. TermSet is "auto", "symptoms" or
// "symptoms_herbs"; auto derives it from the method name.
type BM25Config struct {
	K1               float64 `yaml:"k1"`
	B                float64 `yaml:"b"`
	ClampNegativeIDF bool    `yaml:"clampNegativeIdf"`
	TermSet          string  `yaml:"termSet"`
}

// EvaluationConfig controls the cutoffs and fold-level parallelism.
type EvaluationConfig struct {
	KValues []int `yaml:"kValues"`
	Workers int   `yaml:"workers"`
}

// SourceConfig selects where visit records are read from ("file" or
// "postgres").
type SourceConfig struct {
	Type string `yaml:"type"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the fold exchange.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`

	// PublishTimeout bounds one event write. After FailureThreshold
	// consecutive failures events are dropped for ResetTimeout.
	PublishTimeout   time.Duration `yaml:"publishTimeout"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	EvaluationEvents string `yaml:"evaluationEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape server and the optional
// Pushgateway push performed when a batch run finishes.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	JobName        string `yaml:"jobName"`
}

// ExpansionConfig points at the dictionary, similarity and topic model
// inputs of the query expansion generators.
type ExpansionConfig struct {
	DictionaryPath       string  `yaml:"dictionaryPath"`
	SimilarityMatrixPath string  `yaml:"similarityMatrixPath"`
	SimilarityThreshold  float64 `yaml:"similarityThreshold"`
	MaxTerms             int     `yaml:"maxTerms"`

	// CodeListDir holds code_list_<fold>.txt, the column order of the word
	// distributions found under TopicDir.
	CodeListDir string `yaml:"codeListDir"`
	TopicDir    string `yaml:"topicDir"`
	TopWords    int    `yaml:"topWords"`
}

// SplitConfig controls how the cleaned record file is partitioned into folds.
type SplitConfig struct {
	Seed  int64 `yaml:"seed"`
	Folds int   `yaml:"folds"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Data.Folds <= 0 {
		return fmt.Errorf("data.folds must be positive, got %d", c.Data.Folds)
	}
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must not be negative, got %v", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be within [0,1], got %v", c.BM25.B)
	}
	switch c.BM25.TermSet {
	case "auto", "symptoms", "symptoms_herbs":
	default:
		return fmt.Errorf("bm25.termSet %q is not one of auto, symptoms, symptoms_herbs", c.BM25.TermSet)
	}
	if len(c.Evaluation.KValues) == 0 {
		return fmt.Errorf("evaluation.kValues must not be empty")
	}
	for _, k := range c.Evaluation.KValues {
		if k <= 0 {
			return fmt.Errorf("evaluation.kValues must be positive, got %d", k)
		}
	}
	switch c.Source.Type {
	case "file", "postgres":
	default:
		return fmt.Errorf("source.type %q is not one of file, postgres", c.Source.Type)
	}
	return nil
}

// defaultConfig returns a Config matching the layout produced by the
// preparation tools.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			DataDir:     "./data/train_test",
			ResultsDir:  "./results",
			TrainMethod: "no_expansion",
			Folds:       10,
		},
		BM25: BM25Config{
			K1:      1.5,
			B:       0.75,
			TermSet: "auto",
		},
		Evaluation: EvaluationConfig{
			KValues: []int{10, 20, 30},
			Workers: 1,
		},
		Source: SourceConfig{
			Type: "file",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "visits",
			User:            "qeval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			TTL:       24 * time.Hour,
			KeyPrefix: "qeval",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "qeval-watch",
			Topics: KafkaTopics{
				EvaluationEvents: "evaluation-events",
			},
			PublishTimeout:   5 * time.Second,
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port:    9090,
			JobName: "qeval",
		},
		Expansion: ExpansionConfig{
			DictionaryPath:       "./data/herb_symptom_dictionary.txt",
			SimilarityMatrixPath: "./data/similarity_matrix.txt",
			SimilarityThreshold:  0.9,
			MaxTerms:             10,
			CodeListDir:          "./data/code_lists",
			TopicDir:             "./results",
			TopWords:             200,
		},
		Split: SplitConfig{
			Seed:  111,
			Folds: 10,
		},
	}
}

// applyEnvOverrides reads QE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QE_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv("QE_RESULTS_DIR"); v != "" {
		cfg.Data.ResultsDir = v
	}
	if v := os.Getenv("QE_TOPIC_DIR"); v != "" {
		cfg.Expansion.TopicDir = v
	}
	if v := os.Getenv("QE_FOLDS"); v != "" {
		if folds, err := strconv.Atoi(v); err == nil {
			cfg.Data.Folds = folds
		}
	}
	if v := os.Getenv("QE_BM25_K1"); v != "" {
		if k1, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BM25.K1 = k1
		}
	}
	if v := os.Getenv("QE_BM25_B"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BM25.B = b
		}
	}
	if v := os.Getenv("QE_BM25_TERM_SET"); v != "" {
		cfg.BM25.TermSet = v
	}
	if v := os.Getenv("QE_WORKERS"); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.Workers = workers
		}
	}
	if v := os.Getenv("QE_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = v
	}
	if v := os.Getenv("QE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("QE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("QE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("QE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("QE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QE_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
}
