package main

import (
	"cloud.google.com/go/civil"
	"github.com/Veraticus/spice-statements/internal/cli"
	"github.com/Veraticus/spice-statements/internal/common"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates DATE [DATE...]",
		Short: "Show the exchange rates a run would use",
		Long: `Query the configured rate provider for each date (YYYY-MM-DD) and print
the raw rate next to the rate with markup applied.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRates,
	}
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	days := make([]civil.Date, 0, len(args))
	for _, arg := range args {
		day, err := civil.ParseDate(arg)
		if err != nil {
			return common.NewUserError("dates must look like 2023-05-01", err)
		}
		days = append(days, day)
	}

	provider, err := newRateProvider(cfg)
	if err != nil {
		return err
	}
	// Validates markup and currency codes the same way a run does.
	converter, err := newConverter(cfg, provider)
	if err != nil {
		return err
	}

	rows := make([]cli.RateRow, 0, len(days))
	for _, day := range days {
		row := cli.RateRow{Date: day.String()}
		rate, err := provider.Rate(cmd.Context(), converter.Foreign(), converter.Home(), day)
		if err != nil {
			row.Err = err
		} else {
			row.Rate = rate
			row.Effective = rate.Mul(cfg.Currency.Markup)
		}
		rows = append(rows, row)
	}

	writeLine(cmd.OutOrStdout(), cli.RenderRates(converter.Foreign(), converter.Home(), rows))
	return nil
}
