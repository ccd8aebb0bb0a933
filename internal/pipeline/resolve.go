package pipeline

import (
	"path"
	"strings"

	"github.com/spf13/afero"
)

// resolveExtensions are probed in order for extension-less requests.
var resolveExtensions = []string{".js", ".mjs", ".cjs", ".json"}

// isRelativeRequest reports whether request names a file rather than a package.
func isRelativeRequest(request string) bool {
	return strings.HasPrefix(request, "./") ||
		strings.HasPrefix(request, "../") ||
		strings.HasPrefix(request, "/") ||
		request == "." || request == ".."
}

// resolve maps a request made from issuer to a file in fs.
// Package requests are externals and resolve to "", true.
func resolve(fs afero.Fs, issuer, request string) (string, bool) {
	if !isRelativeRequest(request) {
		return "", true
	}

	base := request
	if !strings.HasPrefix(request, "/") {
		base = path.Join(path.Dir(issuer), request)
	}
	base = path.Clean(base)

	if isFile(fs, base) {
		return base, true
	}
	for _, ext := range resolveExtensions {
		if isFile(fs, base+ext) {
			return base + ext, true
		}
	}
	for _, ext := range resolveExtensions {
		candidate := path.Join(base, "index"+ext)
		if isFile(fs, candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isFile(fs afero.Fs, name string) bool {
	info, err := fs.Stat(name)
	return err == nil && !info.IsDir()
}
