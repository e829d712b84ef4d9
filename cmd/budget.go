package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-extdedup.git/sysmem"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Print the memory budget a dedup run would use",
	Long: `Resolves --memory-limit (or the configured default) against the total memory of this
host and prints the number of bytes of keys that will be held in memory before spilling.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := memoryLimitOption(cmd)
		if err != nil {
			return err
		}
		total, ok := sysmem.Total()
		budget := dedupe.MemoryBudget(limit, total, ok)
		out := cmd.OutOrStdout()
		if ok {
			fmt.Fprintf(out, "total memory:\t%d (%s)\n", total, humanize.Bytes(total))
		} else {
			fmt.Fprintln(out, "total memory:\tunknown")
		}
		if budget == 0 {
			fmt.Fprintln(out, "memory budget:\tunlimited")
			return nil
		}
		fmt.Fprintf(out, "memory budget:\t%d (%s)\n", budget, humanize.Bytes(budget))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(budgetCmd)
}
