package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/spice-statements/internal/category"
	"github.com/Veraticus/spice-statements/internal/cli"
	"github.com/Veraticus/spice-statements/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func dictionaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Check that the category dictionary loads",
		RunE:  runDictionary,
	}

	cmd.Flags().Bool("show", false, "List every entry")

	return cmd
}

func runDictionary(cmd *cobra.Command, _ []string) error {
	show, _ := cmd.Flags().GetBool("show")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	dict, err := category.LoadDictionary(cfg.Dictionary.Path, cfg.Dictionary.Sheet)
	if err != nil {
		return fmt.Errorf("failed to load dictionary %s: %w", cfg.Dictionary.Path, err)
	}

	out := cmd.OutOrStdout()
	writeLine(out, cli.FormatSuccess(fmt.Sprintf("%d entries in %s", len(dict), cfg.Dictionary.Path)))

	if show {
		keys := make([]string, 0, len(dict))
		for key := range dict {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, key := range keys {
			lines = append(lines, cli.FormatField(dict[key], key))
		}
		writeLine(out, cli.RenderBox("Dictionary", strings.Join(lines, "\n")))
	}

	return nil
}
