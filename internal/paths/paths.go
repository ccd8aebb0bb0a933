// Package paths normalizes file paths to the slash-separated form module
// resources use.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to root
// - Converts backslashes to forward slashes
func Canonicalize(absolutePath string, root string) (string, error) {
	resolved, err := evalSymlinks(absolutePath)
	if err != nil {
		return "", err
	}
	rootResolved, err := evalSymlinks(root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// evalSymlinks resolves symlinks, using the path as-is when it does not exist yet.
func evalSymlinks(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if os.IsNotExist(err) {
		return p, nil
	}
	return resolved, err
}

// IsWithin checks if a path is inside root
func IsWithin(path string, root string) bool {
	canonical, err := Canonicalize(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// Resource returns the absolute slash-separated form of p, as used for
// module resources.
func Resource(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(abs), nil
}

// Display shortens resource for output: relative to root when it lies
// inside it, unchanged otherwise.
func Display(resource string, root string) string {
	if root == "" {
		return resource
	}
	rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(resource))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return resource
	}
	return filepath.ToSlash(rel)
}

// HasIgnoredSegment reports whether any segment of the slash-separated
// relative path equals one of the ignored names.
func HasIgnoredSegment(rel string, ignored []string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, name := range ignored {
			if segment == name {
				return true
			}
		}
	}
	return false
}
