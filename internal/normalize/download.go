package normalize

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// DownloadPolicy decides which asset URLs are materialized. The zero value allows
// every URL.
type DownloadPolicy struct {
	// Disabled turns every download off.
	Disabled bool
	// Extensions, when non-nil, allows only URLs with one of these extensions
	// (without the leading dot). An empty non-nil list allows nothing.
	Extensions []string
}

// DownloadAll allows every URL.
func DownloadAll() DownloadPolicy { return DownloadPolicy{} }

// DownloadNone allows no URL.
func DownloadNone() DownloadPolicy { return DownloadPolicy{Disabled: true} }

// DownloadExtensions allows only URLs with the given extensions.
func DownloadExtensions(exts ...string) DownloadPolicy {
	if exts == nil {
		exts = []string{}
	}
	return DownloadPolicy{Extensions: exts}
}

// Allows reports whether rawURL should be materialized.
func (p DownloadPolicy) Allows(rawURL string) bool {
	if p.Disabled {
		return false
	}
	if p.Extensions == nil {
		return true
	}
	ext := ExtensionOf(rawURL)
	return ext != "" && slices.Contains(p.Extensions, ext)
}

// ExtensionOf returns the file extension of a root-relative or absolute URL path,
// without the leading dot. It returns "" when there is none or the URL is invalid.
func ExtensionOf(rawURL string) string {
	var p string
	if strings.HasPrefix(rawURL, "/") {
		p, _, _ = strings.Cut(rawURL, "?")
		p, _, _ = strings.Cut(p, "#")
	} else {
		u, err := url.Parse(rawURL)
		if err != nil || !u.IsAbs() || u.Path == "" {
			return ""
		}
		p = u.Path
	}
	return strings.TrimPrefix(path.Ext(p), ".")
}
