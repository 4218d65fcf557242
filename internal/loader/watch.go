package loader

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/agentic-research/weft/internal/dataset"
)

// Watch reloads datasets as collection jobs rewrite their JSON files, calling
// onChange after each successful reload (the coordinator's Trigger, in
// practice). Blocks until ctx is done. Non-JSON files and transient read
// errors are skipped; a dataset mid-rewrite is picked up on its next event.
func Watch(ctx context.Context, store *dataset.Store, dir string, onChange func(), log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }() // safe to ignore

	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info("watching dataset directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			name, err := LoadFile(store, event.Name)
			if err != nil {
				log.Warn("dataset reload skipped", "file", event.Name, "err", err)
				continue
			}
			log.Info("dataset reloaded", "dataset", name, "version", store.Version())
			if onChange != nil {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		}
	}
}
