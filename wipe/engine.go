package wipe

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const defaultChunkSize = 64 * 1024

// Outcome describes the destruction of a single file.
type Outcome struct {
	Path            string `json:"path"`
	Size            int64  `json:"size"`
	PassesCompleted int    `json:"passesCompleted"`
	Success         bool   `json:"success"`
}

// Engine destroys individual files by streaming overwrite passes.
type Engine struct {
	chunkSize int
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithChunkSize overrides the per-write chunk size. Intended for tests.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) { e.chunkSize = n }
}

// WithEngineLogger sets the structured logger for per-file wipe events.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a wipe engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Overwrite destroys the file at path: min(passes, catalog) sequential
// overwrite passes with distinct patterns, a durable flush after each pass,
// then unlink. With verify set, the final pass is read back and compared
// before the unlink.
//
// There is no rollback on failure: a partially overwritten file is strictly
// more destroyed than the original, so errors propagate as ErrWipeIO with
// whatever passes completed recorded in the Outcome.
func (e *Engine) Overwrite(path string, passes int, verify bool) (Outcome, error) {
	outcome := Outcome{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return outcome, fmt.Errorf("stat %s: %w: %w", path, err, ErrWipeIO)
	}
	outcome.Size = info.Size()

	effective := EffectivePasses(passes)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return outcome, fmt.Errorf("open %s: %w: %w", path, err, ErrWipeIO)
	}

	for pass := 0; pass < effective; pass++ {
		if err := e.runPass(f, info.Size(), patternCatalog[pass]); err != nil {
			f.Close()
			return outcome, fmt.Errorf("pass %d of %s: %w: %w", pass+1, path, err, ErrWipeIO)
		}
		// Commit this pass to the medium before the next one starts; without
		// the flush the kernel may collapse the passes into a single write.
		if err := f.Sync(); err != nil {
			f.Close()
			return outcome, fmt.Errorf("sync pass %d of %s: %w: %w", pass+1, path, err, ErrWipeIO)
		}
		outcome.PassesCompleted++
	}

	if verify && effective > 0 {
		if err := e.verifyPass(f, info.Size(), patternCatalog[effective-1]); err != nil {
			f.Close()
			return outcome, fmt.Errorf("verify %s: %w: %w", path, err, ErrWipeIO)
		}
	}

	if err := f.Close(); err != nil {
		return outcome, fmt.Errorf("close %s: %w: %w", path, err, ErrWipeIO)
	}
	if err := os.Remove(path); err != nil {
		return outcome, fmt.Errorf("unlink %s: %w: %w", path, err, ErrWipeIO)
	}

	outcome.Success = true
	e.logger.Debug("file wiped", "path", path, "size", outcome.Size, "passes", outcome.PassesCompleted)
	return outcome, nil
}

// runPass streams one pattern across the whole file in fixed-size chunks.
func (e *Engine) runPass(f *os.File, size int64, pattern []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	buf := make([]byte, e.chunkSize)
	fillChunk(buf, pattern)

	var written int64
	for written < size {
		chunk := buf
		if remaining := size - written; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		n, err := f.Write(chunk)
		written += int64(n)
		if err != nil {
			return fmt.Errorf("write at %d: %w", written, err)
		}
	}
	return nil
}

// verifyPass reads the file back and compares it against the expected pattern.
func (e *Engine) verifyPass(f *os.File, size int64, pattern []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	want := make([]byte, e.chunkSize)
	fillChunk(want, pattern)
	got := make([]byte, e.chunkSize)

	var read int64
	for read < size {
		chunk := got
		if remaining := size - read; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		if _, err := io.ReadFull(f, chunk); err != nil {
			return fmt.Errorf("read at %d: %w", read, err)
		}
		if !bytes.Equal(chunk, want[:len(chunk)]) {
			return fmt.Errorf("pattern mismatch at offset %d", read)
		}
		read += int64(len(chunk))
	}
	return nil
}
