// Package cli holds the lotledger command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the lotledger command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lotledger",
		Short:         "Lot-based stock ledger and order log",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newMigrateCommand(),
		newStockCommand(),
		newOrdersCommand(),
		newJobsCommand(),
	)
	return root
}
