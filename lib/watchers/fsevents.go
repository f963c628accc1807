//go:build darwin

package watchers

import (
	"time"

	"github.com/fsnotify/fsevents"

	"git.sr.ht/~rjarry/msglist/lib/log"
)

func init() {
	RegisterWatcherFactory(newDarwinWatcher)
}

type darwinWatcher struct {
	ch   chan *FSEvent
	w    *fsevents.EventStream
	done chan struct{}
}

func newDarwinWatcher() (FSWatcher, error) {
	watcher := &darwinWatcher{
		ch:   make(chan *FSEvent),
		done: make(chan struct{}),
		w: &fsevents.EventStream{
			Flags:   fsevents.WatchRoot,
			Latency: 500 * time.Millisecond,
		},
	}
	return watcher, nil
}

func (w *darwinWatcher) watch() {
	defer log.PanicHandler()
	defer close(w.ch)
	for events := range w.w.Events {
		for _, ev := range events {
			var op FSOperation
			switch {
			case ev.Flags&fsevents.ItemCreated > 0:
				op = FSCreate
			case ev.Flags&fsevents.ItemRenamed > 0:
				op = FSRename
			case ev.Flags&fsevents.ItemRemoved > 0:
				op = FSRemove
			default:
				continue
			}
			select {
			case w.ch <- &FSEvent{Operation: op, Path: ev.Path}:
			case <-w.done:
				return
			}
		}
	}
}

func (w *darwinWatcher) Configure(root string) error {
	dev, err := fsevents.DeviceForPath(root)
	if err != nil {
		return err
	}
	w.w.Device = dev
	w.w.Paths = []string{root}
	if err := w.w.Start(); err != nil {
		return err
	}
	go w.watch()
	return nil
}

func (w *darwinWatcher) Events() <-chan *FSEvent {
	return w.ch
}

func (w *darwinWatcher) Add(p string) error {
	return nil
}

func (w *darwinWatcher) Remove(p string) error {
	return nil
}

func (w *darwinWatcher) Close() error {
	close(w.done)
	w.w.Stop()
	return nil
}
