// Package security guards file names and paths derived from user input.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned for a path that resolves outside its directory.
var ErrPathEscape = errors.New("path escapes directory")

const maxFilenameLen = 128

// ValidatePathWithinDirectory checks that path resolves inside dir. Symlinks
// are resolved for dir and for the deepest existing ancestor of path, so a
// not-yet-created file under a symlinked directory is still checked against
// its real location. dir must exist.
func ValidatePathWithinDirectory(path, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(root, resolveExisting(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, path, dir)
	}
	return nil
}

// resolveExisting resolves symlinks in the longest existing prefix of abs and
// re-appends the missing tail.
func resolveExisting(abs string) string {
	tail := ""
	for p := abs; ; {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, tail)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		tail = filepath.Join(filepath.Base(p), tail)
		p = parent
	}
}

// SanitizeFilename maps s onto ASCII letters, digits, dot, underscore and
// dash. Each run of other characters becomes one underscore and the result is
// capped at 128 bytes. Empty results become "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	replaced := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isFilenameRune(r) {
			b.WriteRune(r)
			replaced = false
			continue
		}
		if !replaced {
			b.WriteByte('_')
			replaced = true
		}
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}

func isFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// OutputPath joins the sanitized name onto dir and checks the result stays
// inside dir.
func OutputPath(dir, name string) (string, error) {
	path := filepath.Join(dir, SanitizeFilename(name))
	if err := ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}
