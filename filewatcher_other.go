//go:build !linux

package main

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWatcher fallback for platforms without inotify: poll modification
// times once a second. Good enough for a link that takes milliseconds.
type FileWatcher struct {
	mu       sync.Mutex
	times    map[string]time.Time
	onChange func(string)
}

func NewFileWatcher(onChange func(string)) (*FileWatcher, error) {
	return &FileWatcher{
		times:    make(map[string]time.Time),
		onChange: onChange,
	}, nil
}

func (fw *FileWatcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	fw.mu.Lock()
	fw.times[absPath] = info.ModTime()
	fw.mu.Unlock()
	return nil
}

func (fw *FileWatcher) Watch() {
	for {
		time.Sleep(time.Second)

		fw.mu.Lock()
		for path, seen := range fw.times {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(seen) {
				fw.times[path] = info.ModTime()
				fw.onChange(path)
			}
		}
		fw.mu.Unlock()
	}
}
