// Package security guards the paths the analyzer serves, removes and
// exports, and sanitises uploaded file names.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// canonical resolves symlinks in path. For a path that does not exist yet the
// deepest existing ancestor is resolved and the rest appended, so a link in a
// parent directory cannot be used to escape.
func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, path)
			return filepath.Join(resolved, rest)
		}
		if filepath.Dir(dir) == dir {
			return path
		}
	}
}

// ValidatePathWithinDirectory returns an error unless filePath, after
// resolving "..", relative segments and symlinks, lies inside safeDir.
// safeDir must exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(dir, canonical(absPath))
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// ValidateExportPath accepts report outputs under the temp directory or the
// working directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	allowed := []string{os.TempDir(), cwd}
	for _, dir := range allowed {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowed)
}

// maxFilenameLen bounds a sanitised upload name in bytes.
const maxFilenameLen = 128

// SanitizeFilename reduces an uploaded file name to a safe base name: path
// components are dropped, whitespace runs become one underscore and anything
// outside [A-Za-z0-9._-] is removed. Leading dots and underscores are
// trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte('_')
			}
			space = true
			continue
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
		space = false
	}
	out := strings.TrimLeft(b.String(), "._")
	if len(out) > maxFilenameLen {
		ext := filepath.Ext(out)
		if len(ext) >= maxFilenameLen {
			ext = ""
		}
		out = out[:maxFilenameLen-len(ext)] + ext
	}
	return out
}
