package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/importer"
	"github.com/cleared-dev/invoicemap/internal/runlog"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		supplierID  string
		mappingName string
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import supplier invoice files through a mapping",
		Long: "Import supplier invoice files through a mapping. Without file arguments every\n" +
			"csv, txt and xlsx file in the import directory is imported and successful\n" +
			"files are moved to its processed/ subdirectory.",
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}

			scanDir := ""
			paths := args
			if len(paths) == 0 {
				scanDir = dir
				if scanDir == "" {
					scanDir = a.cfg.Import.Dir
				}
				files, err := importer.Scan(scanDir)
				if err != nil {
					return err
				}
				for _, f := range files {
					a.log.Debug("import.queued", zap.String("file", f.Name), zap.String("format", f.Format), zap.Int64("size", f.Size))
					paths = append(paths, f.Path)
				}
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to import")
				return nil
			}

			batch := importer.New(a.st, a.log).ImportFiles(cmd.Context(), reg, supplierID, mappingName, paths)
			printBatch(cmd, batch)

			if a.cfg.RunLog != "" {
				if err := runlog.Append(a.cfg.RunLog, runlog.Entries(batch, mappingName, time.Now().UTC())); err != nil {
					return err
				}
			}

			if scanDir != "" {
				for _, f := range batch.Files {
					if f.Err != nil {
						continue
					}
					if _, err := importer.MarkProcessed(scanDir, filepath.Base(f.Path)); err != nil {
						a.log.Warn("import.mark_processed", zap.String("file", f.Path), zap.Error(err))
					}
				}
			}

			if n := batch.Failed(); n > 0 {
				return fmt.Errorf("%d of %d files failed to import", n, len(batch.Files))
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&supplierID, "supplier", "", "supplier id (required)")
	cmd.Flags().StringVar(&mappingName, "mapping", "", "mapping name (required)")
	cmd.Flags().StringVar(&dir, "dir", "", "directory to scan instead of import.dir")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("mapping")

	return cmd
}

func (a *app) registry() (*importer.Registry, error) {
	delim, err := a.cfg.Import.DelimiterRune()
	if err != nil {
		return nil, err
	}
	return importer.DefaultRegistry(importer.ReaderOptions{
		Delimiter: delim,
		Encoding:  a.cfg.Import.Encoding,
		Sheet:     a.cfg.Import.Sheet,
	}), nil
}

func printBatch(cmd *cobra.Command, b importer.Batch) {
	out := cmd.OutOrStdout()
	for _, f := range b.Files {
		name := filepath.Base(f.Path)
		if f.Err != nil {
			fmt.Fprintf(out, "FAILED  %s: %v\n", name, f.Err)
			continue
		}
		fmt.Fprintf(out, "OK      %s: %d headers, %d lines, %d skipped\n",
			name, f.Summary.HeadersImported, f.Summary.LinesImported, len(f.Summary.Skipped))
		for _, s := range f.Summary.Skipped {
			fmt.Fprintf(out, "        row %d %s %q: %s\n", s.Row, s.Unit, s.Key, s.Reason)
		}
	}
	fmt.Fprintf(out, "Run %s: %d files, %d failed\n", b.RunID, len(b.Files), b.Failed())
}
