package main

import (
	"github.com/Veraticus/spice-statements/internal/cli"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rows stored by the last run",
		RunE:  runShow,
	}

	cmd.Flags().Int("limit", 20, "Number of rows to show (0 for all)")
	cmd.Flags().Bool("unconverted", false, "Only show rows whose conversion failed")

	return cmd
}

func runShow(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	unconverted, _ := cmd.Flags().GetBool("unconverted")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	txns, err := store.GetTransactions(cmd.Context())
	if err != nil {
		return err
	}
	total := len(txns)

	if unconverted {
		kept := txns[:0]
		for _, txn := range txns {
			if txn.ConversionFailed {
				kept = append(kept, txn)
			}
		}
		txns = kept
	}
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}

	writeLine(cmd.OutOrStdout(), cli.RenderTransactions(txns, total))
	return nil
}
