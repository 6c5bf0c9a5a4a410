package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/paste"
)

func newOrdersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "Record and inspect orders",
	}
	cmd.AddCommand(newOrdersListCommand(), newOrdersShowCommand(), newOrdersPasteCommand())
	return cmd
}

func newOrdersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List orders newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			headers, err := rt.orders.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tPARTY\tGADI")
			for _, h := range headers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.ID, h.OrderDate.Format(inventory.OrderDateLayout), h.PartyName, h.GadiNo)
			}
			return tw.Flush()
		},
	}
}

func newOrdersShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			order, err := rt.orders.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order)
		},
	}
}

func newOrdersPasteCommand() *cobra.Command {
	var (
		file   string
		date   string
		key    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Submit a pasted order message read from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				return printJSON(out, paste.ParseOrder(text))
			}
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			result, err := rt.orders.SubmitPastedOrder(cmd.Context(), text, date, key)
			if err != nil {
				return err
			}
			if !result.TotalMatches && result.ParsedTotal != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: message total %d differs from item sum %d\n", *result.ParsedTotal, result.Order.TotalQuantity())
			}
			return printOrder(out, result.Order)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "message file, stdin when empty")
	cmd.Flags().StringVar(&date, "date", "", "order date, now when empty")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "reject a replay of the same key")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse only and print the result")
	return cmd
}
