package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/invoicemap/internal/preview"
)

func newPreviewCommand(a *app) *cobra.Command {
	var in preview.Input

	cmd := &cobra.Command{
		Use:   "preview VALUE",
		Short: "Show what a rule would write for a sample value",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			in.RawValue = args[0]
			schema := preview.NewSchemaCache(preview.NewGormSchemaSource(a.st.DB()))
			res := preview.New(schema, a.log).Preview(cmd.Context(), in)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Status, res.DisplayValue, res.Message)
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Transformation, "transformation", "", "transformation name, e.g. ToDate")
	cmd.Flags().StringVar(&in.TransformationArgs, "args", "", "transformation argument, e.g. %d/%m/%Y")
	cmd.Flags().StringVar(&in.DestinationField, "field", "", "destination column")
	cmd.Flags().StringVar(&in.FieldRole, "role", "", "rule role: header, item, line or account")

	return cmd
}
