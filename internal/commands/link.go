package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/invoicemap/internal/link"
)

func newLinkCommand(a *app) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "link ITEM_ID CIRCUIT_ID",
		Short: "Link a circuit to an invoice item",
		Args:  cobra.ExactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			itemID, err := parseRowID("item", args[0])
			if err != nil {
				return err
			}
			circuitID, err := parseRowID("circuit", args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if detach {
				ok, err := link.Detach(cmd.Context(), a.st, itemID, circuitID)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "Circuit %d is not linked to item %d\n", circuitID, itemID)
					return nil
				}
				fmt.Fprintf(out, "Unlinked circuit %d from item %d\n", circuitID, itemID)
				return nil
			}

			linkID, err := link.Attach(cmd.Context(), a.st, itemID, circuitID)
			if errors.Is(err, link.ErrAlreadyLinked) {
				fmt.Fprintf(out, "Circuit %d is already linked to item %d\n", circuitID, itemID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Linked circuit %d to item %d (link %d)\n", circuitID, itemID, linkID)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "remove the link instead")

	return cmd
}

func parseRowID(what, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return n, nil
}
