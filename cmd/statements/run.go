package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/spice-statements/internal/cli"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/Veraticus/spice-statements/internal/income"
	"github.com/Veraticus/spice-statements/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the unified statement and replace the transactions table",
		Long: `Read the newest export of each source, categorize, convert and tag
every row, then replace the transactions table in the configured database.

A source whose export is missing or unreadable contributes no rows; a date
without an exchange rate leaves its rows unconverted and flagged. Missing
database settings stop the run before anything is read.`,
		RunE: runRun,
	}

	// Flags
	cmd.Flags().Bool("dry-run", false, "Run every stage but skip writing to the database")
	cmd.Flags().Bool("confirm", false, "Ask before replacing the transactions table")
	cmd.Flags().String("markup", "", "Multiplier applied to every exchange rate (default from config, 1.07)")
	cmd.Flags().String("home", "", "Currency to convert into")
	cmd.Flags().String("foreign", "", "Currency to convert from")

	_ = viper.BindPFlag("currency.markup", cmd.Flags().Lookup("markup"))
	_ = viper.BindPFlag("currency.home", cmd.Flags().Lookup("home"))
	_ = viper.BindPFlag("currency.foreign", cmd.Flags().Lookup("foreign"))

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	confirm, _ := cmd.Flags().GetBool("confirm")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), !dryRun)
	defer handler.Stop()

	var sink pipeline.Sink
	if !dryRun {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if confirm {
			ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Replace table transactions on %s?", store.Target()))
			if err != nil {
				return err
			}
			if !ok {
				writeLine(cmd.OutOrStdout(), cli.FormatInfo("Nothing written"))
				return nil
			}
		}
		sink = store
	}

	provider, err := newRateProvider(cfg)
	if err != nil {
		return err
	}
	progress := cli.NewProgressProvider(provider, os.Stderr)
	defer progress.Finish()

	converter, err := newConverter(cfg, progress)
	if err != nil {
		return err
	}

	p, err := pipeline.New(
		pipeline.Config{Sources: cfg.Sources, Home: cfg.Currency.Home, DryRun: dryRun},
		newResolver(cfg, loadDictionary(cfg)),
		converter,
		income.NewTagger(cfg.Income.Cutover),
		sink,
	)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx)
	progress.Finish()
	if report != nil {
		writeLine(cmd.OutOrStdout(), cli.RenderSummary(report))
	}
	if err != nil {
		if handler.WasInterrupted() {
			return errors.New("run interrupted")
		}
		return err
	}

	return nil
}
