package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, list and restore encrypted snapshots",
		Long: "Snapshots are encrypted copies of the schedule written to the configured " +
			"directory. They need snapshots.dir and snapshots.passphrase in the config.",
	}
	cmd.AddCommand(newSnapshotCreateCmd(e))
	cmd.AddCommand(newSnapshotListCmd(e))
	cmd.AddCommand(newSnapshotRestoreCmd(e))
	return cmd
}

func newSnapshotCreateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Write a snapshot now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.snapshot.RunNow(context.Background())
			if err != nil {
				return fmt.Errorf("create snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d written\n", id)
			return nil
		},
	}
}

func newSnapshotListCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			snapshots, err := s.snapshot.List(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintln(out, "no snapshots")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tSIZE\tFILE")
			for _, snap := range snapshots {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", snap.ID,
					snap.CreatedAt.Format(time.DateTime), snap.Status, snap.SizeBytes, snap.Filename)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of snapshots to list")
	return cmd
}

func newSnapshotRestoreCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Replace the schedule with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid snapshot id %q", args[0])
			}

			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			state, err := s.snapshot.Restore(context.Background(), id)
			if err != nil {
				return fmt.Errorf("restore snapshot %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored snapshot %d: %d appointments\n", id, len(state.Appointments))
			return nil
		},
	}
}
