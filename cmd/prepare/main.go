package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/expansion"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/split"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
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
		Use:   "prepare",
		Short: "Prepare fold files: clean records, split folds, expand queries",
		Long: `prepare builds the inputs of 'evaluator run':

  prepare clean <in> <out>        drop incomplete records
  prepare split <in>              write the train/test fold files
  prepare expand synonym          dictionary-based expansion of every fold
  prepare expand embedding        similarity-based expansion of every fold
  prepare expand topic <model>    lda or bilda word distribution expansion`,
		Args: cobra.NoArgs,
		RunE: app.MissingSubcommand,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	app.Configure(rootCmd)

	expandCmd := &cobra.Command{
		Use:   "expand",
		Short: "Write expanded test query files for every fold",
		Args:  cobra.NoArgs,
		RunE:  app.MissingSubcommand,
	}
	expandCmd.AddCommand(synonymCmd(), embeddingCmd(), topicCmd())
	rootCmd.AddCommand(cleanCmd(), splitCmd(), expandCmd)
	return rootCmd
}

func setup(cmd *cobra.Command) (*app.Env, error) {
	path, _ := cmd.Flags().GetString("config")
	return app.Setup(path)
}

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <in> <out>",
		Short: "Copy records with a full identity and non-empty code lists",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return app.UsageError("expected <in> <out>, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			stats, err := record.Clean(args[0], args[1])
			if err != nil {
				return err
			}
			slog.Info("records cleaned",
				"read", stats.Read,
				"kept", stats.Kept,
				"malformed", stats.Malformed,
				"incomplete", stats.Blank,
			)
			return nil
		},
	}
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <in>",
		Short: "Shuffle records and write train/test files for each fold",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return app.UsageError("expected <in>, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config
			seed := cfg.Split.Seed
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetInt64("seed")
			}
			folds := cfg.Split.Folds
			if cmd.Flags().Changed("folds") {
				folds, _ = cmd.Flags().GetInt("folds")
			}
			return split.WriteFolds(args[0], cfg.Data.DataDir, cfg.Data.TrainMethod, folds, seed)
		},
	}
	cmd.Flags().Int64("seed", 111, "shuffle seed")
	cmd.Flags().Int("folds", 10, "number of folds")
	return cmd
}

func synonymCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "synonym",
		Short: "Add the herbs that treat each query symptom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config
			dict, err := expansion.LoadDictionary(cfg.Expansion.DictionaryPath)
			if err != nil {
				return err
			}
			gen := expansion.NewGenerator(cfg.Data.DataDir, cfg.Data.TrainMethod, cfg.Data.Folds, env.Loader())
			return gen.Run(cmd.Context(), evaluation.MethodTag("synonym"), func(_ int, train record.Corpus) (expansion.Expander, error) {
				return expansion.NewSynonymExpander(dict, expansion.CodeSet(train)), nil
			})
		},
	}
}

func embeddingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedding",
		Short: "Add the training codes most similar to each query's symptoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config
			mixed, _ := cmd.Flags().GetBool("mixed")
			dict, err := expansion.LoadDictionary(cfg.Expansion.DictionaryPath)
			if err != nil {
				return err
			}
			sim, err := expansion.LoadSimilarity(cfg.Expansion.SimilarityMatrixPath, dict.Codes())
			if err != nil {
				return err
			}
			method := "embedding"
			if mixed {
				method = "embedding_mixed"
			}
			slog.Info("similarity matrix loaded", "codes", len(dict.Codes()), "method", method)

			gen := expansion.NewGenerator(cfg.Data.DataDir, cfg.Data.TrainMethod, cfg.Data.Folds, env.Loader())
			return gen.Run(cmd.Context(), evaluation.MethodTag(method), func(_ int, train record.Corpus) (expansion.Expander, error) {
				candidates := expansion.TrainingCodes(train, mixed)
				if len(candidates) == 0 {
					return nil, fmt.Errorf("training corpus has no codes: %w", apperrors.ErrEmptyCorpus)
				}
				return expansion.NewEmbeddingExpander(sim, candidates, cfg.Expansion.SimilarityThreshold, cfg.Expansion.MaxTerms), nil
			})
		},
	}
	cmd.Flags().Bool("mixed", false, "also propose herb codes from the training corpus")
	return cmd
}

func topicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic <lda|bilda>",
		Short: "Add the codes made most probable by the topics sharing each query's symptoms",
		Long: `Expand every fold with a precomputed topic model. Fold f reads
<codeListDir>/code_list_f.txt and
<topicDir>/<model>_word_distributions/<model>_word_distribution_f.txt
and writes test_<model>[_mixed]_expansion_f.txt.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return app.UsageError("expected <lda|bilda>, got %d arguments", len(args))
			}
			if !slices.Contains(expansion.TopicModels, args[0]) {
				return app.UsageError("unknown topic model %q, want one of %v", args[0], expansion.TopicModels)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config.Expansion
			model := args[0]
			mixed, _ := cmd.Flags().GetBool("mixed")
			method := model
			if mixed {
				method += "_mixed"
			}

			data := env.Config.Data
			gen := expansion.NewGenerator(data.DataDir, data.TrainMethod, data.Folds, env.Loader())
			return gen.Run(cmd.Context(), evaluation.MethodTag(method), func(fold int, train record.Corpus) (expansion.Expander, error) {
				m, err := expansion.LoadTopicModel(
					expansion.CodeListPath(cfg.CodeListDir, fold),
					expansion.TopicMatrixPath(cfg.TopicDir, model, fold),
					cfg.TopWords,
				)
				if err != nil {
					return nil, err
				}
				slog.Debug("topic model loaded", "fold", fold, "model", model, "topics", len(m.Topics), "codes", len(m.Codes))
				return expansion.NewTopicExpander(m, expansion.SymptomSet(train), mixed, cfg.MaxTerms), nil
			})
		},
	}
	cmd.Flags().Bool("mixed", false, "also propose herb codes")
	return cmd
}
