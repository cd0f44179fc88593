package legalrisk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/store"
)

// Watch ingests every supported file in dir, then keeps the index in sync
// with the directory until ctx is done: created or modified files are
// re-ingested and removed files are dropped from the index.
func (e *Engine) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, ent := range entries {
		path := filepath.Join(dir, ent.Name())
		if ent.IsDir() || !e.watched(path) {
			continue
		}
		if _, err := e.Ingest(ctx, path); err != nil {
			e.log.Warn("watch: initial ingest failed", "path", path, "error", err)
		}
	}
	e.log.Info("watch: watching directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !e.watched(ev.Name) {
				continue
			}
			e.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("watch: watcher error", "error", err)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if _, err := e.Ingest(ctx, ev.Name); err != nil {
			e.log.Warn("watch: ingest failed", "path", ev.Name, "error", err)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if err := e.forget(ctx, ev.Name); err != nil {
			e.log.Warn("watch: removing source failed", "path", ev.Name, "error", err)
		}
	}
}

// forget drops the source indexed from path, if any.
func (e *Engine) forget(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	src, err := e.store.GetSourceByPath(ctx, absPath)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.DeleteSource(ctx, src.ID)
}

func (e *Engine) watched(path string) bool {
	_, err := e.parsers.Get(parser.Format(path))
	return err == nil
}
