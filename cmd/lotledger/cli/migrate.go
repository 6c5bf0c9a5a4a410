package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lotledger/lotledger/internal/app"
	"github.com/lotledger/lotledger/internal/platform/db"
	"github.com/lotledger/lotledger/internal/store"
	"github.com/lotledger/lotledger/migrations"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch cfg.StoreDriver {
			case store.DriverPostgres:
				pool, err := db.New(ctx, cfg.StoreDSN, cfg.StoreNamespace)
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err := db.Migrate(ctx, pool, migrations.FS)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(out, "schema up to date")
				}
				for _, name := range applied {
					fmt.Fprintf(out, "applied %s\n", name)
				}
			case store.DriverSQLite, store.DriverMySQL, store.DriverGormPG:
				backend, err := store.Open(ctx, store.Config{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN, Namespace: cfg.StoreNamespace}, app.NewLogger(cfg))
				if err != nil {
					return err
				}
				backend.Close()
				fmt.Fprintf(out, "%s schema synchronised\n", cfg.StoreDriver)
			default:
				fmt.Fprintf(out, "%s store has no schema\n", cfg.StoreDriver)
			}
			return nil
		},
	}
}
