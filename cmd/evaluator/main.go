package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evaluator",
		Short: "Evaluate query expansion methods with BM25 retrieval over cross-validation folds",
		Long: `evaluator ranks every test query of each fold against the fold's training
visits with BM25 and pools NDCG@k or precision@k over all folds.

Run 'evaluator run <method> <metric>' to evaluate a method.
Results are written to <resultsDir>/<method>_expansion_<metric>.txt.`,
		Args: cobra.NoArgs,
		RunE: app.MissingSubcommand,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	app.Configure(rootCmd)

	rootCmd.AddCommand(runCmd(), collectCmd(), watchCmd())
	return rootCmd
}

func setup(cmd *cobra.Command) (*app.Env, context.Context, error) {
	path, _ := cmd.Flags().GetString("config")
	env, err := app.Setup(path)
	if err != nil {
		return nil, nil, err
	}
	ctx := logger.WithRunID(cmd.Context(), app.NewRunID())
	return env, ctx, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <method> <metric>",
		Short: "Evaluate a method over all folds, or a subset with --exchange",
		Long: `Evaluate one expansion method.

Methods: no, lda, lda_mixed, bilda, bilda_mixed, embedding, embedding_mixed, synonym.
Metrics: ndcg, precision.

With --exchange each fold result is stored in Redis instead of a result file,
so folds can be split across processes with --folds and gathered with
'evaluator collect'.`,
		Args: app.MethodMetricArgs(evaluation.Methods),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			method := args[0]
			metric, _ := evaluation.ParseMetric(args[1])
			cfg := env.Config
			ks, _ := cmd.Flags().GetIntSlice("k")
			if !cmd.Flags().Changed("k") {
				ks = cfg.Evaluation.KValues
			}
			workers, _ := cmd.Flags().GetInt("workers")
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Evaluation.Workers
			}
			folds, _ := cmd.Flags().GetIntSlice("folds")
			useExchange, _ := cmd.Flags().GetBool("exchange")
			if len(folds) > 0 && !useExchange {
				return app.UsageError("--folds evaluates a subset and requires --exchange")
			}

			source, err := env.Source(ctx)
			if err != nil {
				return err
			}
			evaluator, err := evaluation.NewEvaluator(source, evaluation.Options{
				Params: ranker.Params{
					K1:               cfg.BM25.K1,
					B:                cfg.BM25.B,
					ClampNegativeIDF: cfg.BM25.ClampNegativeIDF,
				},
				TermSet:  cfg.BM25.TermSet,
				TrainTag: cfg.Data.TrainMethod,
				Metric:   metric,
				Ks:       ks,
				Folds:    cfg.Data.Folds,
				Workers:  workers,
			}, env.Metrics, env.Events)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info("evaluation started", "method", method, "metric", metric, "k", ks, "workers", workers)

			if useExchange {
				exchange, err := env.Exchange()
				if err != nil {
					return err
				}
				if len(folds) == 0 {
					for i := 0; i < cfg.Data.Folds; i++ {
						folds = append(folds, i)
					}
				}
				results, err := evaluator.RunFolds(ctx, method, folds)
				if err != nil {
					return err
				}
				for _, fr := range results {
					if err := exchange.Publish(ctx, fr); err != nil {
						return err
					}
				}
				log.Info("fold results published", "key", exchange.Key(method, metric), "folds", folds)
				env.Push(map[string]string{"method": method, "metric": string(metric)})
				return nil
			}

			var set *evaluation.MetricSet
			if perQuery, _ := cmd.Flags().GetString("per-query"); perQuery != "" {
				all := make([]int, cfg.Data.Folds)
				for i := range all {
					all[i] = i
				}
				results, err := evaluator.RunFolds(ctx, method, all)
				if err != nil {
					return err
				}
				set = evaluator.Pool(ctx, method, results)
				if err := evaluation.WriteSamplesFile(perQuery, results); err != nil {
					return err
				}
				log.Info("per-query samples written", "path", perQuery)
			} else {
				set, err = evaluator.Run(ctx, method)
				if err != nil {
					return err
				}
			}
			path := evaluator.ResultPath(cfg.Data.ResultsDir, method)
			if err := set.WriteFile(path); err != nil {
				return err
			}
			log.Info("results written", "path", path)
			env.Push(map[string]string{"method": method, "metric": string(metric)})
			return nil
		},
	}
	cmd.Flags().IntSlice("k", []int{10, 20, 30}, "cutoffs to report")
	cmd.Flags().IntSlice("folds", nil, "evaluate only these folds (requires --exchange)")
	cmd.Flags().Int("workers", 1, "folds evaluated concurrently")
	cmd.Flags().Bool("exchange", false, "store fold results in Redis instead of writing a result file")
	cmd.Flags().String("per-query", "", "also write fold, query id, k and value of every sample to this file")
	return cmd
}

func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect <method> <metric>",
		Short: "Gather fold results from Redis and write the result file",
		Args:  app.MethodMetricArgs(evaluation.Methods),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			method := args[0]
			metric, _ := evaluation.ParseMetric(args[1])
			ks, _ := cmd.Flags().GetIntSlice("k")
			if !cmd.Flags().Changed("k") {
				ks = env.Config.Evaluation.KValues
			}

			exchange, err := env.Exchange()
			if err != nil {
				return err
			}
			set, err := exchange.Collect(ctx, method, metric, env.Config.Data.Folds, ks)
			if err != nil {
				return err
			}
			for _, k := range set.Ks() {
				env.Metrics.SetMean(method, string(metric), k, set.Mean(k))
			}
			path := filepath.Join(env.Config.Data.ResultsDir, evaluation.ResultFileName(method, metric))
			if err := set.WriteFile(path); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("results written", "path", path, "folds", env.Config.Data.Folds)
			env.Push(map[string]string{"method": method, "metric": string(metric)})
			return nil
		},
	}
	cmd.Flags().IntSlice("k", []int{10, 20, 30}, "cutoffs to write, in order")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print evaluation events from Kafka as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if !env.Config.Kafka.Enabled {
				return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "kafka is disabled in the configuration")
			}
			out := cmd.OutOrStdout()
			w := kafka.NewWatcher(env.Config.Kafka, env.Config.Kafka.Topics.EvaluationEvents)
			return w.Run(ctx, func(_ context.Context, ev kafka.Received) error {
				slog.Debug("evaluation event", "key", ev.Key, "partition", ev.Partition, "offset", ev.Offset)
				_, err := fmt.Fprintln(out, string(ev.Value))
				return err
			})
		},
	}
}
