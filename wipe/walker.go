package wipe

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Settings controls how a wipe run destroys its targets.
type Settings struct {
	Passes          int  `json:"passes"`
	Verify          bool `json:"verify"`
	RemoveEmptyDirs bool `json:"removeEmptyDirs"`
}

// PathError records a single per-path failure inside a best-effort traversal.
type PathError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// DirectoryOutcome aggregates the result of wiping one subtree.
type DirectoryOutcome struct {
	Files       []Outcome   `json:"files"`
	Directories []string    `json:"directories"`
	Errors      []PathError `json:"errors"`
}

// Tracker receives per-item progress as the walker destroys a subtree.
// The walker reports every item exactly once: a file outcome, a directory
// (removed or merely traversed), or a per-path error.
type Tracker interface {
	RecordFile(sessionID string, outcome Outcome)
	RecordDirectory(sessionID, path string, removed bool)
	RecordError(sessionID, path, message string)
}

// Walker drives the Engine over directory subtrees in post-order: every
// descendant is fully processed before its parent directory is removed.
type Walker struct {
	engine  *Engine
	tracker Tracker
	logger  *slog.Logger
}

// NewWalker creates a walker that reports progress to the given tracker.
func NewWalker(engine *Engine, tracker Tracker, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Walker{engine: engine, tracker: tracker, logger: logger}
}

// dirFrame is one level of the explicit traversal stack. An explicit stack
// bounds memory on pathological tree depths where recursion would not.
type dirFrame struct {
	path    string
	entries []os.DirEntry
	next    int
}

// WipePath destroys a single target, dispatching on whether it is a file or
// a directory. Missing targets are reported as a per-path error.
func (w *Walker) WipePath(fullPath, sessionID string, settings Settings) DirectoryOutcome {
	info, err := os.Stat(fullPath)
	if err != nil {
		msg := fmt.Sprintf("cannot access %s: %v", fullPath, err)
		w.tracker.RecordError(sessionID, fullPath, msg)
		return DirectoryOutcome{Errors: []PathError{{Path: fullPath, Message: msg}}}
	}
	if info.IsDir() {
		return w.WipeDirectory(fullPath, sessionID, settings)
	}

	var out DirectoryOutcome
	w.wipeFile(fullPath, sessionID, settings, &out)
	return out
}

// WipeDirectory destroys the subtree rooted at dirPath. Per-item failures
// are recorded and never abort the remaining siblings; an unreadable
// directory contributes exactly one error for its own path.
func (w *Walker) WipeDirectory(dirPath, sessionID string, settings Settings) DirectoryOutcome {
	var out DirectoryOutcome

	stack := []*dirFrame{w.pushDir(dirPath, sessionID, &out)}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		if fr == nil {
			stack = stack[:len(stack)-1]
			continue
		}

		if fr.next < len(fr.entries) {
			entry := fr.entries[fr.next]
			fr.next++
			child := filepath.Join(fr.path, entry.Name())
			if entry.IsDir() {
				stack = append(stack, w.pushDir(child, sessionID, &out))
			} else {
				w.wipeFile(child, sessionID, settings, &out)
			}
			continue
		}

		// Every descendant of this directory has been processed.
		stack = stack[:len(stack)-1]
		w.finishDir(fr.path, sessionID, settings, &out)
	}

	return out
}

// pushDir reads a directory listing into a new frame. A listing failure is
// recorded as one error for the directory path and yields no frame.
func (w *Walker) pushDir(path, sessionID string, out *DirectoryOutcome) *dirFrame {
	entries, err := os.ReadDir(path)
	if err != nil {
		msg := fmt.Errorf("reading directory: %w: %w", err, ErrDirectoryRead).Error()
		out.Errors = append(out.Errors, PathError{Path: path, Message: msg})
		w.tracker.RecordError(sessionID, path, msg)
		w.logger.Warn("directory unreadable", "path", path, "error", err)
		return nil
	}
	return &dirFrame{path: path, entries: entries}
}

func (w *Walker) wipeFile(path, sessionID string, settings Settings, out *DirectoryOutcome) {
	outcome, err := w.engine.Overwrite(path, settings.Passes, settings.Verify)
	if err != nil {
		out.Errors = append(out.Errors, PathError{Path: path, Message: err.Error()})
		w.tracker.RecordError(sessionID, path, err.Error())
		return
	}
	out.Files = append(out.Files, outcome)
	w.tracker.RecordFile(sessionID, outcome)
}

func (w *Walker) finishDir(path, sessionID string, settings Settings, out *DirectoryOutcome) {
	if !settings.RemoveEmptyDirs {
		w.tracker.RecordDirectory(sessionID, path, false)
		return
	}
	if err := os.Remove(path); err != nil {
		msg := fmt.Sprintf("removing directory: %v", err)
		out.Errors = append(out.Errors, PathError{Path: path, Message: msg})
		w.tracker.RecordError(sessionID, path, msg)
		return
	}
	out.Directories = append(out.Directories, path)
	w.tracker.RecordDirectory(sessionID, path, true)
}

// CountItems walks the subtree (or single file) at root and returns the
// number of items the walker will report for it. Used to size progress
// before destruction starts. Unreadable directories count as one item, the
// error the walker will record for them.
func CountItems(root string) int {
	info, err := os.Stat(root)
	if err != nil {
		return 1
	}
	if !info.IsDir() {
		return 1
	}

	total := 0
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total++ // the directory itself
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				stack = append(stack, filepath.Join(dir, entry.Name()))
			} else {
				total++
			}
		}
	}
	return total
}
