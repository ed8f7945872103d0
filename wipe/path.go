package wipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValidatedPath is the result of sanitizing a user-supplied relative path
// against the configured base directory.
type ValidatedPath struct {
	Relative string `json:"relative"`
	Full     string `json:"full"`
}

// ValidatePath sanitizes rawPath against baseDir. The returned full path is
// guaranteed to sit inside baseDir. All rejections wrap ErrInvalidPath.
func ValidatePath(rawPath, baseDir string) (ValidatedPath, error) {
	raw := strings.TrimSpace(norm.NFC.String(rawPath))
	if raw == "" {
		return ValidatedPath{}, fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	if filepath.IsAbs(raw) {
		return ValidatedPath{}, fmt.Errorf("absolute path %q: %w", raw, ErrInvalidPath)
	}

	rel := filepath.Clean(filepath.FromSlash(raw))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ValidatedPath{}, fmt.Errorf("parent traversal in %q: %w", raw, ErrInvalidPath)
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ValidatedPath{}, fmt.Errorf("resolving base directory: %w", err)
	}
	full := filepath.Join(base, rel)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return ValidatedPath{}, fmt.Errorf("%q escapes base directory: %w", raw, ErrInvalidPath)
	}

	return ValidatedPath{Relative: rel, Full: full}, nil
}

// Exists reports whether the path exists. A missing path is a caller-side
// warning, never an error.
func Exists(fullPath string) bool {
	_, err := os.Stat(fullPath)
	return err == nil
}
