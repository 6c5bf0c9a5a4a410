package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/paste"
)

func newStockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and adjust lot balances",
	}
	cmd.AddCommand(
		newStockListCommand(),
		newStockGetCommand(),
		newStockAddCommand(),
		newStockSetCommand(),
		newStockReserveCommand(),
		newStockPasteCommand(),
		newStockEntriesCommand(),
	)
	return cmd
}

func newStockListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every lot ordered by lot number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			records, err := rt.ledger.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			return printStock(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newStockGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get LOT",
		Short: "Show one lot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := rt.ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newStockAddCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add LOT QTY",
		Short: "Increase a lot balance, creating the lot when absent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := rt.ledger.Increment(cmd.Context(), args[0], description, qty)
			if err != nil {
				return err
			}
			return printStock(cmd.OutOrStdout(), []inventory.StockRecord{rec})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "product description")
	return cmd
}

func newStockSetCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "set LOT QTY",
		Short: "Overwrite a lot balance and description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := rt.ledger.SetBalance(cmd.Context(), args[0], description, qty)
			if err != nil {
				return err
			}
			return printStock(cmd.OutOrStdout(), []inventory.StockRecord{rec})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "product description")
	return cmd
}

func newStockReserveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve LOT QTY",
		Short: "Take quantity out of a lot without recording an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := rt.ledger.Reserve(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			return printStock(cmd.OutOrStdout(), []inventory.StockRecord{rec})
		},
	}
}

func newStockPasteCommand() *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Apply a pasted stock report read from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				return printJSON(out, paste.ParseStock(text))
			}
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			result, err := rt.ledger.ImportStockText(cmd.Context(), text)
			if err != nil {
				return err
			}
			for _, skip := range result.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped line %d: %s\n", skip.Line, skip.Reason)
			}
			fmt.Fprintf(out, "imported %d entries into %d lots\n", result.Entries, len(result.Applied))
			return printStock(out, result.Applied)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "report file, stdin when empty")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse only and print the rows")
	return cmd
}

func newStockEntriesCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List the most recently imported report rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			entries, err := rt.ledger.ListStockEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}
