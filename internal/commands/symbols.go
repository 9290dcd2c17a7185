package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List every symbol the archive has for the selected market and data type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		syms, err := a.Syncer.ListSymbols(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range syms {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		a.Logger.Info("listed symbols", "selection", a.Syncer.Selection(), "count", len(syms))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}
