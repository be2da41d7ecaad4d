package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unitlink/internal/cli"
	"github.com/Veraticus/unitlink/internal/storage"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage state database checkpoints",
		Long: `Create, list, and delete checkpoints of the state database.

A checkpoint is a full copy of the decision log, stored block results and run
history. One is taken automatically before every decision import.`,
		Example: `  # Checkpoint before a large review import
  unitlink checkpoint create --tag "pre-q3-review"

  # List all checkpoints
  unitlink checkpoint list

  # Delete an old checkpoint
  unitlink checkpoint delete pre-q3-review`,
	}

	cmd.AddCommand(createCheckpointCmd())
	cmd.AddCommand(listCheckpointsCmd())
	cmd.AddCommand(deleteCheckpointCmd())

	return cmd
}

func createCheckpointCmd() *cobra.Command {
	var tag string
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		Long:  `Create a snapshot of the current state database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			manager, closeStore, err := openCheckpoints(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			info, err := manager.Create(ctx, tag, description)
			if err != nil {
				return fmt.Errorf("failed to create checkpoint: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Created checkpoint %s (%s)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				formatFileSize(info.FileSize))
			if info.Description != "" {
				fmt.Fprintf(out, "  Description: %s\n", info.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Checkpoint tag/name (auto-generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the checkpoint")

	return cmd
}

func listCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		Long:  `Display all available checkpoints with their metadata.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			manager, closeStore, err := openCheckpoints(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			checkpoints, err := manager.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}
			return writeCheckpointTable(cmd.OutOrStdout(), checkpoints, time.Now())
		},
	}
}

func writeCheckpointTable(out io.Writer, checkpoints []storage.CheckpointInfo, now time.Time) error {
	if len(checkpoints) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("No checkpoints found."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("NAME"),
		cli.TableHeaderStyle.Render("CREATED"),
		cli.TableHeaderStyle.Render("SIZE"),
		cli.TableHeaderStyle.Render("DECISIONS"),
		cli.TableHeaderStyle.Render("RUNS"),
		cli.TableHeaderStyle.Render("TYPE"),
	}, "\t"))

	for _, cp := range checkpoints {
		typeLabel := "manual"
		if cp.IsAuto {
			typeLabel = "auto"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			cli.InfoStyle.Render(cp.ID),
			formatRelativeTime(cp.CreatedAt, now),
			formatFileSize(cp.FileSize),
			cp.Decisions,
			cp.Runs,
			cli.SubtleStyle.Render(typeLabel),
		)
	}
	return w.Flush()
}

func deleteCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Long:  `Permanently remove a checkpoint.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			checkpointID := args[0]

			manager, closeStore, err := openCheckpoints(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(out, "%s This will permanently delete checkpoint %s.\n",
					cli.WarningStyle.Render(cli.WarningIcon),
					cli.InfoStyle.Render(checkpointID))
				fmt.Fprintf(out, "\nContinue? (y/N) ")

				var response string
				_, _ = fmt.Fscanln(cmd.InOrStdin(), &response)
				if !strings.HasPrefix(strings.ToLower(response), "y") {
					fmt.Fprintln(out, cli.SubtitleStyle.Render("Deletion cancelled."))
					return nil
				}
			}

			if err := manager.Delete(ctx, checkpointID); err != nil {
				return fmt.Errorf("failed to delete checkpoint: %w", err)
			}

			fmt.Fprintf(out, "%s Deleted checkpoint %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(checkpointID))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// openCheckpoints opens the state database and its checkpoint manager. The
// returned function closes the database.
func openCheckpoints(ctx context.Context) (*storage.CheckpointManager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	manager, err := store.NewCheckpointManager()
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	return manager, func() { _ = store.Close() }, nil
}

// autoCheckpoint snapshots the database ahead of a write the user may want to
// undo. In-memory databases are skipped.
func autoCheckpoint(ctx context.Context, store *storage.SQLiteStorage, prefix string) error {
	manager, err := store.NewCheckpointManager()
	if errors.Is(err, storage.ErrInMemoryDatabase) {
		slog.Debug("Skipping automatic checkpoint for in-memory database")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	info, err := manager.AutoCheckpoint(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to create automatic checkpoint: %w", err)
	}
	slog.Info("Created automatic checkpoint", "id", info.ID, "size", formatFileSize(info.FileSize))
	return nil
}
