package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unitlink/internal/cli"
	"github.com/Veraticus/unitlink/internal/model"
	"github.com/Veraticus/unitlink/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work with the review decision log",
		Long: `Import reviewer decisions and inspect the decision log.

Reviewers fill the decision column (approve, reject or skip) of
review_queue.parquet, or produce a CSV with owner_id, txn_id, decision,
reviewer and timestamp columns. The latest decision per pair wins.`,
	}

	cmd.AddCommand(reviewImportCmd())
	cmd.AddCommand(reviewStatusCmd())

	return cmd
}

func reviewImportCmd() *cobra.Command {
	var noCheckpoint bool

	cmd := &cobra.Command{
		Use:   "import <decisions-file>",
		Short: "Import review decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			log, result, err := importDecisions(ctx, store, args[0], !noCheckpoint)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d decisions (%d applied, %d unchanged)",
				len(log.Decisions), result.Applied, result.Unchanged)))
			if log.Undecided > 0 {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d rows have no decision yet", log.Undecided)))
			}
			if log.Invalid > 0 {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d rows could not be read and were skipped", log.Invalid)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "skip the automatic checkpoint before importing")

	return cmd
}

func reviewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show decision counts and recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return writeReviewStatus(ctx, cmd.OutOrStdout(), store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "runs", "n", 5, "number of recent runs to show")

	return cmd
}

type statusSource interface {
	DecisionCounts(ctx context.Context) (map[model.Decision]int, error)
	ListRuns(ctx context.Context, limit int) ([]service.RunRecord, error)
}

func writeReviewStatus(ctx context.Context, out io.Writer, store statusSource, limit int) error {
	counts, err := store.DecisionCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count decisions: %w", err)
	}
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	var b strings.Builder
	total := 0
	decisions := make([]model.Decision, 0, len(counts))
	for d, n := range counts {
		decisions = append(decisions, d)
		total += n
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i] < decisions[j] })
	fmt.Fprintf(&b, "%s %d\n", cli.LabelStyle.Render("Decided pairs"), total)
	for _, d := range decisions {
		fmt.Fprintf(&b, "%s %d\n", cli.LabelStyle.Render("  "+string(d)), counts[d])
	}
	fmt.Fprintln(out, cli.RenderBox(cli.ReviewIcon+" Decision log", strings.TrimRight(b.String(), "\n")))

	if len(runs) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("No runs recorded."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("RUN"),
		cli.TableHeaderStyle.Render("STARTED"),
		cli.TableHeaderStyle.Render("STATUS"),
		cli.TableHeaderStyle.Render("MATCHED"),
		cli.TableHeaderStyle.Render("REVIEW"),
	}, "\t"))
	for _, r := range runs {
		matched, queue := "-", "-"
		if r.Stats != nil {
			matched = fmt.Sprint(r.Stats.Matched)
			queue = fmt.Sprint(r.Stats.Review.QueueSize)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			cli.InfoStyle.Render(shortID(r.ID)),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			matched,
			queue)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
