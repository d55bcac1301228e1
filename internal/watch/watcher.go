// Package watch reports changes to a single file, debounced.
package watch

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDelay = time.Millisecond * 500

// File calls callback after path is written, created, renamed or removed,
// once the changes settle for delay. The parent directory is watched so
// atomic rename-into-place writes are seen. The returned stop function
// closes the watcher.
func File(path string, delay time.Duration, callback func()) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}

	reload := make(chan struct{}, 1)
	done := make(chan struct{})
	go scheduleReload(reload, done, delay, callback)
	go handleWatcher(watcher, filepath.Clean(path), reload, done)

	return watcher.Close, nil
}

func handleWatcher(
	watcher *fsnotify.Watcher,
	path string,
	reload chan<- struct{},
	done chan<- struct{},
) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write | fsnotify.Remove | fsnotify.Create | fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %s: %v\n", path, err)
		}
	}
}

func scheduleReload(
	reload <-chan struct{},
	done <-chan struct{},
	delay time.Duration,
	callback func(),
) {
	var timer *time.Timer = nil
	var c <-chan time.Time = nil
	for {
		select {
		case <-reload:
			if timer != nil {
				timer.Reset(delay)
			} else {
				timer = time.NewTimer(delay)
				c = timer.C
			}

		case <-c:
			c = nil
			timer = nil
			callback()

		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
