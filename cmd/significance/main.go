package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/significance"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "significance <method> <metric>",
		Short: "Paired t-test of a method's pooled metric against the no-expansion baseline",
		Long: `significance reads results/no_expansion_<metric>.txt and
results/<method>_expansion_<metric>.txt and reports, for each cutoff, both
means and a paired t-test of baseline minus method.

Methods: no, lda, lda_mixed, bilda, bilda_mixed, embedding, embedding_mixed,
synonym, and the lda/bilda/embedding _symptoms and _herbs result variants.
Metrics: ndcg, precision.`,
		Args: app.MethodMetricArgs(evaluation.ResultMethods),
		RunE: run,
	}
	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().Bool("json", false, "print reports as JSON")
	app.Configure(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	env, err := app.Setup(path)
	if err != nil {
		return err
	}
	defer env.Close()
	ctx := logger.WithRunID(cmd.Context(), app.NewRunID())

	method := args[0]
	metric, _ := evaluation.ParseMetric(args[1])
	dir := env.Config.Data.ResultsDir

	baseline, err := evaluation.ReadMetricSetFile(filepath.Join(dir, evaluation.ResultFileName(evaluation.BaselineMethod, metric)))
	if err != nil {
		return err
	}
	candidate, err := evaluation.ReadMetricSetFile(filepath.Join(dir, evaluation.ResultFileName(method, metric)))
	if err != nil {
		return err
	}
	reports, err := significance.Compare(baseline, candidate)
	if err != nil {
		return err
	}

	for _, r := range reports {
		env.Metrics.SetMean(evaluation.BaselineMethod, string(metric), r.K, r.BaselineMean)
		env.Metrics.SetMean(method, string(metric), r.K, r.CandidateMean)
		env.Metrics.SignificanceTStat.WithLabelValues(method, string(metric), strconv.Itoa(r.K)).Set(r.Statistic)
	}
	event := kafka.Event{Key: method, Value: map[string]any{
		"type":    "significance_reported",
		"method":  method,
		"metric":  metric,
		"run_id":  logger.RunID(ctx),
		"time":    time.Now().UTC(),
		"reports": reports,
	}}
	if err := env.Events.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("publishing significance event", "error", err)
	}
	env.Push(map[string]string{"method": method, "metric": string(metric)})

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	return significance.WriteText(out, method, reports)
}
