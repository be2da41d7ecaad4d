package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/unitlink/internal/cli"
	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/config"
	"github.com/Veraticus/unitlink/internal/engine"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/service"
	"github.com/Veraticus/unitlink/internal/storage"
	"github.com/Veraticus/unitlink/internal/tabular"
)

var _ engine.Progress = (*cli.BlockProgress)(nil)

type runOptions struct {
	ownersPath    string
	txnsPath      string
	decisionsPath string
	noCheckpoint  bool
	noProgress    bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Link owners to transactions",
		Long: `Run the full linkage pipeline over one snapshot of both record sets.

Outputs are written to the output directory: matches, unmatched records on
both sides, the review queue, the excluded-row report and run_stats.json.
An interrupted run resumes from its finished blocks when re-run with the
same inputs and configuration.`,
		Example: `  # Link two CSV exports
  unitlink run --owners owners.csv --transactions transactions.csv

  # Apply a returned review queue first, then re-run
  unitlink run --owners owners.parquet --transactions txns.parquet --decisions review_queue.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), strings.Join(os.Args, " "))
			defer stop()

			return runLinkage(ctx, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.ownersPath, "owners", "o", "", "owner registry (.csv or .parquet)")
	cmd.Flags().StringVarP(&opts.txnsPath, "transactions", "t", "", "transaction ledger (.csv or .parquet)")
	cmd.Flags().StringVar(&opts.decisionsPath, "decisions", "", "review decisions to import before matching")
	cmd.Flags().BoolVar(&opts.noCheckpoint, "no-checkpoint", false, "skip the automatic checkpoint before importing decisions")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().StringP("output", "O", "", "output directory (default: out)")
	cmd.Flags().Int("workers", 0, "parallel fuzzy-matching workers (default: number of CPUs)")

	_ = cmd.MarkFlagRequired("owners")
	_ = cmd.MarkFlagRequired("transactions")
	_ = viper.BindPFlag("output.dir", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("matching.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runLinkage(ctx context.Context, cfg *config.Config, opts runOptions, stdout, stderr io.Writer) error {
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.decisionsPath != "" {
		if _, _, err := importDecisions(ctx, store, opts.decisionsPath, !opts.noCheckpoint); err != nil {
			return err
		}
	}

	owners, txns, err := readInputs(ctx, opts.ownersPath, opts.txnsPath)
	if err != nil {
		return err
	}

	var engineOpts []engine.Option
	if !opts.noProgress {
		engineOpts = append(engineOpts, engine.WithProgress(cli.NewBlockProgress(stderr)))
	}
	eng, err := engine.New(cfg, store, engineOpts...)
	if err != nil {
		return err
	}

	res, err := eng.Run(ctx, engine.Input{Owners: owners, Transactions: txns})
	if err != nil {
		if res != nil && res.Stats != nil {
			var written []string
			statsPath := filepath.Join(cfg.Output.Dir, tabular.RunStatsFile)
			if werr := tabular.WriteStats(statsPath, res.Stats); werr != nil {
				slog.Warn("Failed to write partial run statistics", "path", statsPath, "error", werr)
			} else {
				written = append(written, statsPath)
			}
			fmt.Fprintln(stdout, cli.RenderSummary(res.Stats, written))
		}
		return err
	}

	written, err := tabular.WriteAll(cfg.Output.Dir, tabular.Outputs{
		Stats:                 res.Stats,
		Matches:               res.Matches,
		UnmatchedOwners:       res.UnmatchedOwners,
		UnmatchedTransactions: res.UnmatchedTransactions,
		ReviewQueue:           res.ReviewQueue,
		Excluded:              res.Excluded,
	})
	if err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}

	fmt.Fprintln(stdout, cli.RenderSummary(res.Stats, written))
	if res.Stats.Review.QueueSize > 0 {
		fmt.Fprintln(stdout, cli.FormatInfo(fmt.Sprintf(
			"%d pairs await review in %s", res.Stats.Review.QueueSize, tabular.ReviewQueueFile)))
	}
	return nil
}

// readInputs loads both record sets concurrently.
func readInputs(ctx context.Context, ownersPath, txnsPath string) (*model.RawTable, *model.RawTable, error) {
	var owners, txns *model.RawTable
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := tabular.ReadTable(gctx, ownersPath)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("could not read owners from %s", ownersPath), err)
		}
		owners = t
		return nil
	})
	g.Go(func() error {
		t, err := tabular.ReadTable(gctx, txnsPath)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("could not read transactions from %s", txnsPath), err)
		}
		txns = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	slog.Info("Loaded inputs",
		"owners", len(owners.Rows),
		"transactions", len(txns.Rows))
	return owners, txns, nil
}

// importDecisions merges a decision file into the decision log, taking an
// automatic checkpoint first when asked.
func importDecisions(ctx context.Context, store *storage.SQLiteStorage, path string, checkpoint bool) (*tabular.DecisionLog, service.ImportResult, error) {
	var result service.ImportResult

	log, err := tabular.ReadDecisions(ctx, path)
	if err != nil {
		return nil, result, err
	}
	if len(log.Decisions) == 0 {
		slog.Info("No decisions to import", "file", path, "undecided", log.Undecided)
		return log, result, nil
	}

	if checkpoint {
		if err := autoCheckpoint(ctx, store, "review-import"); err != nil {
			return nil, result, err
		}
	}

	result, err = store.UpsertDecisions(ctx, log.Decisions)
	if err != nil {
		return nil, result, fmt.Errorf("failed to import decisions: %w", err)
	}
	slog.Info("Imported review decisions",
		"file", path,
		"applied", result.Applied,
		"unchanged", result.Unchanged,
		"undecided", log.Undecided,
		"invalid", log.Invalid)
	return log, result, nil
}
