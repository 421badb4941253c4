// Package app wires configuration into the collaborators the command-line
// tools share: record sources, the metrics registry, the event publisher
// and the Redis fold exchange.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/resilience"
)

// Env holds the process-wide collaborators of one command invocation.
type Env struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Events  kafka.Publisher
	Health  *health.Checker
	closers []func() error
}

// Setup loads configuration from path (defaults and QE_* variables when
// empty), installs the logger and starts the metrics server if enabled.
// Services connected later through Source or Exchange are added to the
// server's readiness report.
func Setup(path string) (*Env, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	env := &Env{
		Config:  cfg,
		Metrics: metrics.New(),
		Events:  kafka.Noop{},
		Health:  health.NewChecker(),
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationEvents)
		env.Events = kafka.NewGuarded(producer, cfg.Kafka.PublishTimeout, resilience.BreakerConfig{
			FailureThreshold: cfg.Kafka.FailureThreshold,
			ResetTimeout:     cfg.Kafka.ResetTimeout,
		})
		env.closers = append(env.closers, producer.Close)
	}
	if cfg.Metrics.Enabled {
		shutdown := env.Metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/livez":  health.LiveHandler(),
			"/readyz": env.Health.ReadyHandler(),
		})
		env.closers = append(env.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		})
	}
	return env, nil
}

// Loader returns a record loader that counts skipped lines.
func (e *Env) Loader() *record.Loader {
	l := record.NewLoader(e.Config.Data.Strict)
	l.OnSkip = func(name string, _ int, _ error) {
		e.Metrics.RecordsSkippedTotal.WithLabelValues(filepath.Base(name)).Inc()
	}
	return l
}

// Source opens the configured record source.
func (e *Env) Source(ctx context.Context) (record.Source, error) {
	switch e.Config.Source.Type {
	case "postgres":
		client, err := postgres.New(ctx, e.Config.Postgres)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		e.Health.Register("postgres", client)
		return record.NewPostgresSource(client.DB), nil
	default:
		return record.NewFileSource(e.Config.Data.DataDir, e.Loader()), nil
	}
}

// Exchange connects to Redis and returns the fold exchange.
func (e *Env) Exchange() (*evaluation.Exchange, error) {
	client, err := redis.NewClient(e.Config.Redis)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	e.Health.Register("redis", client)
	return evaluation.NewExchange(client, e.Config.Redis.KeyPrefix, e.Config.Redis.TTL), nil
}

// Push sends the registry to the Pushgateway when one is configured.
func (e *Env) Push(grouping map[string]string) {
	url := e.Config.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := e.Metrics.Push(url, e.Config.Metrics.JobName, grouping); err != nil {
		slog.Warn("metrics push failed", "error", err)
	}
}

// Close releases everything opened through e, last opened first.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// NewRunID returns a random identifier attached to every log line and event
// of one invocation.
func NewRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// UsageError marks err as a command-line usage problem.
func UsageError(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, format, args...)
}

// MissingSubcommand is the RunE of command groups: invoked on their own they
// print usage and fail with ExitUsage.
func MissingSubcommand(cmd *cobra.Command, args []string) error {
	_ = cmd.Usage()
	return UsageError("%s: missing subcommand", cmd.CommandPath())
}

// MethodMetricArgs validates "<method> <metric>" positional arguments.
func MethodMetricArgs(methods []string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return UsageError("expected <method> <metric>, got %d arguments", len(args))
		}
		if err := evaluation.ValidateMethod(args[0], methods); err != nil {
			return err
		}
		_, err := evaluation.ParseMetric(args[1])
		return err
	}
}

// Configure applies the conventions shared by every tool's root command:
// usage is printed only for argument and flag errors, and flag errors map to
// the usage exit code.
func Configure(root *cobra.Command) {
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return UsageError("%v", err)
	})
	prev := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if prev != nil {
			return prev(cmd, args)
		}
		return nil
	}
}
