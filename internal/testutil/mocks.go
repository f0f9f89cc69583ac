package testutil

import (
	"sync"
)

// ProgressEvent is one call of a progress callback.
type ProgressEvent struct {
	File  string
	Done  int64
	Total int64
}

// ProgressRecorder records the progress reported by importers.
type ProgressRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

// Record stores one progress report. Its signature matches
// importer.ProgressFunc.
func (r *ProgressRecorder) Record(file string, done, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ProgressEvent{File: file, Done: done, Total: total})
}

// Events returns the recorded reports in order.
func (r *ProgressRecorder) Events() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]ProgressEvent, len(r.events))
	copy(result, r.events)
	return result
}

// Files returns the distinct files reports were made for, in order of
// first appearance.
func (r *ProgressRecorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []string
	seen := make(map[string]bool)
	for _, e := range r.events {
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	return files
}

// Reset clears all recorded reports.
func (r *ProgressRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
