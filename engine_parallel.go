package varlens

import (
	"context"
	"fmt"
	goruntime "runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/varlens/internal/store"
)

// workItem holds everything a parallel analysis worker needs.
type workItem struct {
	path    string
	fileID  int64
	content []byte
	batch   *store.BatchedStore

	iface string
	err   error
}

// indexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse, check and run rules via a worker pool, each
//	                    file writing into its own BatchedStore.
//	Phase C (serial):   Commit batches to SQLite as workers finish.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string, force bool) error {
	// ---- Phase A: Serial file preparation ----
	var (
		items []*workItem
		errs  []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			for _, item := range items {
				e.dropFile(item.fileID, item.path)
			}
			return err
		}
		fileID, content, skip, err := e.prepareFile(path, force)
		if err != nil {
			e.log.Warn().Err(err).Str("file", path).Msg("indexing failed")
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, &workItem{
			path:    path,
			fileID:  fileID,
			content: content,
			batch:   store.NewBatchedStore(e.store),
		})
	}
	if len(items) == 0 {
		return joinIndexErrors(errs)
	}

	// ---- Phase B: Parallel analysis ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.NumCPU())

	done := make(chan *workItem, len(items))
	var waitErr error
	go func() {
		for _, item := range items {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				// Each file gets its own Runtime reading through its batch.
				rt := e.newRuntime(item.batch)
				item.iface, item.err = e.analyzeFile(gctx, rt, item.batch, item.fileID, item.path, item.content)
				done <- item
				return nil
			})
		}
		waitErr = g.Wait()
		close(done)
	}()

	// ---- Phase C: Serial commit ----
	committed := make(map[*workItem]bool, len(items))
	for item := range done {
		committed[item] = true
		if item.err != nil {
			e.log.Warn().Err(item.err).Str("file", item.path).Msg("indexing failed")
			errs = append(errs, fmt.Errorf("analyze %s: %w", item.path, item.err))
			e.dropFile(item.fileID, item.path)
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			e.dropFile(item.fileID, item.path)
			continue
		}
		if err := e.store.SetFileInterface(item.fileID, item.iface); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
		}
	}

	if waitErr != nil {
		// files never analysed must not look current on the next run
		for _, item := range items {
			if !committed[item] {
				e.dropFile(item.fileID, item.path)
			}
		}
		return waitErr
	}
	return joinIndexErrors(errs)
}
