package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"binance-mirror/internal/model"
)

var planTokens bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a sync would fetch and remove, without transferring anything",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planTokens, "tokens", false, "list the dates of every planned action")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	syms, err := selectedSymbols(a)
	if err != nil {
		return err
	}
	plans, err := a.Syncer.Plan(cmd.Context(), syms)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tMONTHS\tDAYS\tREMOVE\tSTATUS")
	for _, p := range plans {
		if p.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\tfailed: %v\n", p.Symbol, p.Err)
			continue
		}
		r := p.Result
		status := "pending"
		if r.Empty() {
			status = "up-to-date"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", p.Symbol, len(r.MonthsToFetch), len(r.DaysToFetch), len(r.DaysToRemove), status)
		if planTokens && !r.Empty() {
			fmt.Fprintf(w, "\tfetch\t%s\n", joinTokens(append(r.MonthsToFetch.Sorted(), r.DaysToFetch.Sorted()...)))
			if len(r.DaysToRemove) > 0 {
				fmt.Fprintf(w, "\tremove\t%s\n", joinTokens(r.DaysToRemove.Sorted()))
			}
		}
	}
	return w.Flush()
}

func joinTokens(toks []model.DateToken) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}
