package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/invoicemap/internal/accounts"
	"github.com/cleared-dev/invoicemap/internal/id"
)

func newAccountsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Export and import the supplier account register",
	}
	cmd.AddCommand(newAccountsExportCommand(a))
	cmd.AddCommand(newAccountsImportCommand(a))
	return cmd
}

func newAccountsExportCommand(a *app) *cobra.Command {
	var supplier string

	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write accounts as CSV to FILE or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			var supplierID int64
			if supplier != "" {
				var err error
				if supplierID, err = id.ParseSupplierID(supplier); err != nil {
					return err
				}
			}
			accts, err := accounts.NewService(a.st, a.log).BySupplier(cmd.Context(), supplierID)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return accounts.WriteAccounts(cmd.OutOrStdout(), accts)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}
			defer f.Close()
			if err := accounts.WriteAccounts(f, accts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d accounts to %s\n", len(accts), args[0])
			return nil
		}),
	}

	cmd.Flags().StringVar(&supplier, "supplier", "", "only accounts of this supplier id")

	return cmd
}

func newAccountsImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Register the accounts listed in a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			accts, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}
			created, err := accounts.NewService(a.st, a.log).Register(cmd.Context(), accts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %d accounts (%d new)\n", len(accts), created)
			return nil
		}),
	}
}
