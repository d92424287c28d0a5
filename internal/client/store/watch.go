package store

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// schemaWatcher calls onNewer once the marker file holds a version above
// the one this process runs.
type schemaWatcher struct {
	w       *fsnotify.Watcher
	marker  string
	version int64
	onNewer func(int64)
	log     logging.Logger
	wg      sync.WaitGroup
}

// watchSchema watches the marker's directory rather than the file itself,
// since atomic writers replace the file and drop a file-level watch.
func watchSchema(marker string, version int64, onNewer func(int64), log logging.Logger) (*schemaWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(marker)); err != nil {
		_ = w.Close()
		return nil, err
	}

	sw := &schemaWatcher{
		w:       w,
		marker:  filepath.Clean(marker),
		version: version,
		onNewer: onNewer,
		log:     log,
	}
	sw.wg.Add(1)
	go sw.loop()
	return sw, nil
}

func (sw *schemaWatcher) loop() {
	defer sw.wg.Done()
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != sw.marker || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			sw.check()
		case err, ok := <-sw.w.Errors:
			if !ok {
				return
			}
			sw.log.Warn(context.Background(), "schema watcher error", "error", err)
		}
	}
}

func (sw *schemaWatcher) check() {
	v, err := readMarker(sw.marker)
	if err != nil {
		// partially written or removed; the next event will tell
		return
	}
	if v > sw.version {
		sw.onNewer(v)
	}
}

func (sw *schemaWatcher) Close() error {
	err := sw.w.Close()
	sw.wg.Wait()
	return err
}
