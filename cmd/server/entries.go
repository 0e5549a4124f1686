package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hperssn/reframe/internal/config"
	"github.com/hperssn/reframe/internal/storage"
)

// entriesCmd prints a user's thought log as JSON lines, newest first.
func entriesCmd(logLevel *string) *cobra.Command {
	var (
		userID int64
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List saved thought log entries of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			newLogger(*logLevel)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			repo, err := storage.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open thought log store: %w", err)
			}
			defer repo.Close()

			var records []storage.EntryRecord
			if since > 0 {
				records, err = repo.ListRecentEntries(cmd.Context(), userID, time.Now().Add(-since))
			} else {
				records, err = repo.ListEntries(cmd.Context(), userID)
			}
			if err != nil {
				return fmt.Errorf("list entries: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, rec := range records {
				if err := enc.Encode(rec.ThoughtEntry()); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id whose entries to list")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this (e.g. 24h)")

	return cmd
}
