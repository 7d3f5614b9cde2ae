package mappings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const report_file_watch = "file.watch"

// Watch calls onChange after the mapping file was written, created or replaced. Bursts
// of events within `debounce` of each other result in a single call. It blocks until ctx
// is cancelled.
//
// The parent directory is watched instead of the file itself since writes replace the
// file by renaming over it.
func (f *File) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch mappings: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(f.path)
	if err != nil {
		return fmt.Errorf("watch mappings: %w", err)
	}
	err = watcher.Add(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("watch mappings: %w", err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			f.tel.ReportDebug("mapping file changed", event.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.tel.ReportWarning(report_file_watch, err)
		case <-timer.C:
			onChange()
		}
	}
}
