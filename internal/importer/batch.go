package importer

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileResult is the outcome of importing one file of a batch.
type FileResult struct {
	Path    string
	Summary Summary
	Err     error
}

// Batch is the outcome of ImportFiles.
type Batch struct {
	RunID string
	Files []FileResult
}

// Failed returns the number of files that did not import.
func (b Batch) Failed() int {
	n := 0
	for _, f := range b.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// ImportFiles reads and imports each path with the same supplier and
// mapping. Every file gets its own transaction, so a failing file leaves
// the others intact.
func (im *Importer) ImportFiles(ctx context.Context, reg *Registry, supplierID, mappingName string, paths []string) Batch {
	b := Batch{RunID: uuid.NewString()}
	log := im.log.With(zap.String("run_id", b.RunID))
	log.Info("batch.start", zap.Int("files", len(paths)), zap.String("mapping", mappingName))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			b.Files = append(b.Files, FileResult{Path: path, Err: err})
			continue
		}
		res := FileResult{Path: path}
		table, err := reg.ReadFile(path)
		if err != nil {
			res.Err = err
		} else {
			res.Summary, res.Err = im.Import(ctx, Request{
				SupplierID:  supplierID,
				MappingName: mappingName,
				FileName:    filepath.Base(path),
				Table:       table,
			})
		}
		if res.Err != nil {
			log.Error("batch.file.failed", zap.String("file", filepath.Base(path)), zap.Error(res.Err))
		}
		b.Files = append(b.Files, res)
	}

	log.Info("batch.done", zap.Int("files", len(paths)), zap.Int("failed", b.Failed()))
	return b
}
