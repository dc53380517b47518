package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// contentTypeFor returns provided when set, otherwise the MIME type implied
// by the key's extension, otherwise DefaultContentType. Parameters such as
// charset are stripped so stored metadata is stable across platforms.
func contentTypeFor(provided, key string) string {
	if provided != "" {
		return provided
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		base, _, _ := strings.Cut(ct, ";")
		return strings.TrimSpace(base)
	}
	return DefaultContentType
}
