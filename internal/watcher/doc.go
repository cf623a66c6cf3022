// Package watcher keeps a running process's view of the installed record in
// sync with the file on disk.
//
// Another c9install process (or a user with an editor) may rewrite the
// record while a long-lived process is running. The Watcher listens for
// filesystem events on the record's directory with fsnotify, debounces
// bursts of writes, and reloads the record through the version store.
//
// Example usage:
//
//	st := installed.NewStore("~/.c9/installed", logger)
//	if _, err := st.Load(); err != nil && !errors.Is(err, installed.ErrRecordMissing) {
//		return err
//	}
//
//	w, err := watcher.New(st, logger)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
//
//	// Or detach a background watcher
//	if err := w.StartDaemon("/tmp/c9install.pid", "/tmp/c9install.log"); err != nil {
//		return err
//	}
package watcher
