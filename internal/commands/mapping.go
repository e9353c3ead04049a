package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/gitops"
	"github.com/cleared-dev/invoicemap/internal/mapping"
)

func newMappingCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Import and export mapping bundles",
	}
	cmd.AddCommand(newMappingImportCommand(a))
	cmd.AddCommand(newMappingExportCommand(a))
	return cmd
}

func newMappingImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load suppliers, mappings and rules from a YAML bundle",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			b, err := mapping.LoadBundle(args[0])
			if err != nil {
				return err
			}
			stats, err := mapping.NewService(a.st, a.log).Import(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d suppliers, %d mappings, %d rules\n",
				stats.Suppliers, stats.Mappings, stats.Rules)
			return nil
		}),
	}
}

func newMappingExportCommand(a *app) *cobra.Command {
	var commit bool

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write every supplier, mapping and rule to a YAML bundle",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			b, err := mapping.NewService(a.st, a.log).Export(cmd.Context())
			if err != nil {
				return err
			}
			if err := mapping.SaveBundle(path, b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d suppliers to %s\n", len(b.Suppliers), path)

			if !commit && !a.cfg.Git.AutoCommit {
				return nil
			}
			return a.commitBundle(cmd, path)
		}),
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "commit the bundle to the git repository it lives in")

	return cmd
}

func (a *app) commitBundle(cmd *cobra.Command, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	repo := findRepo(filepath.Dir(abs))
	if repo == "" {
		return fmt.Errorf("committing %s: not inside a git repository", path)
	}
	rel, err := filepath.Rel(repo, abs)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(cmd.Context(), repo, "mapping: export "+filepath.Base(path), author, rel)
	if err != nil {
		return err
	}
	if hash == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No mapping changes to commit")
		return nil
	}
	a.log.Info("mapping.committed", zap.String("commit", hash), zap.String("file", rel))
	fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", hash)
	return nil
}

// findRepo walks up from dir to the nearest git repository root.
func findRepo(dir string) string {
	for {
		if gitops.IsRepo(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
