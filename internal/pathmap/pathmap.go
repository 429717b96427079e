// Package pathmap maps remote URLs onto paths inside the output tree.
package pathmap

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/PentesterFlow/OpenMirror/internal/scope"
)

// ExternalDir is the top-level directory holding assets from other hosts.
const ExternalDir = "external"

// maxExtensionLen is the longest extension, without the dot, still treated
// as a file. Anything longer is assumed to be part of a directory-style name.
const maxExtensionLen = 5

var assetExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".mjs": {}, ".json": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".avif": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".mp4": {}, ".webm": {},
}

// Mapper computes local paths for page and asset URLs.
type Mapper struct {
	classifier *scope.Classifier
}

// New creates a Mapper that places target-domain URLs at the tree root.
func New(classifier *scope.Classifier) *Mapper {
	return &Mapper{classifier: classifier}
}

// LocalPath returns the slash-separated local path for rawURL. The query
// string is ignored and percent-encoding in the path is preserved. It
// reports false when rawURL cannot be parsed.
func (m *Mapper) LocalPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return localPathFor(u.EscapedPath()), true
}

// AssetLocalPath is LocalPath for target-domain URLs and
// external/<hostname>/<LocalPath> for everything else.
func (m *Mapper) AssetLocalPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	local := localPathFor(u.EscapedPath())
	if m.classifier.IsTargetDomain(rawURL) {
		return local, true
	}
	return path.Join(ExternalDir, u.Hostname(), local), true
}

func localPathFor(p string) string {
	if p == "" || p == "/" {
		return "index.html"
	}

	// Dot segments must never climb out of the output tree.
	trailing := strings.HasSuffix(p, "/")
	p = path.Clean("/" + p)
	if p == "/" {
		return "index.html"
	}
	p = strings.TrimPrefix(p, "/")

	if trailing {
		return p + "/index.html"
	}

	ext := Ext(p)
	if len(ext) <= 1 || len(ext)-1 > maxExtensionLen {
		return p + "/index.html"
	}
	return p
}

// Ext returns the extension of the last element of p, including the dot.
// A basename that starts with its only dot, such as ".htaccess", has none.
func Ext(p string) string {
	base := path.Base(p)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return ""
	}
	return base[idx:]
}

// HasAssetExtension reports whether p ends in one of the known static asset
// extensions. The comparison is case-insensitive.
func HasAssetExtension(p string) bool {
	_, ok := assetExtensions[strings.ToLower(Ext(p))]
	return ok
}

// RelativePath returns the path to "to" as seen from the directory that
// contains "from". Both are local paths. An empty from yields to with
// forward slashes.
func RelativePath(from, to string) string {
	if from == "" {
		return strings.ReplaceAll(to, `\`, "/")
	}

	dir := filepath.Dir(filepath.FromSlash(from))
	rel, err := filepath.Rel(dir, filepath.FromSlash(to))
	if err != nil {
		return strings.ReplaceAll(to, `\`, "/")
	}
	return filepath.ToSlash(rel)
}
