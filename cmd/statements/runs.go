package main

import (
	"github.com/Veraticus/spice-statements/internal/cli"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs recorded in the database",
		RunE:  runRuns,
	}

	cmd.Flags().Int("limit", 10, "Number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	writeLine(cmd.OutOrStdout(), cli.RenderRuns(runs))
	return nil
}
