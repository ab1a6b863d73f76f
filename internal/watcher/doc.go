// Package watcher provides real-time file system watching with automatic
// debouncing and extension-based filtering.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are debounced to coalesce rapid changes (e.g. a reference manager
// exporting many files at once), and hidden directories plus any
// Options.Extensions filter are applied to skip irrelevant files.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	opts.Extensions = []string{".pdf"}
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/library"); err != nil {
//	    return err
//	}
//
//	for events := range w.Events() {
//	    for _, event := range events {
//	        switch event.Operation {
//	        case watcher.OpCreate:
//	            // A new PDF appeared; trigger incremental re-index
//	        case watcher.OpModify:
//	            // An existing PDF changed
//	        case watcher.OpDelete:
//	            // A PDF was removed
//	        }
//	    }
//	}
package watcher
