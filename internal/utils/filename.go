package utils

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype/types"
	"github.com/vfaronov/httpheader"
)

// maxFilenameRunes caps sanitized filenames to keep them portable.
const maxFilenameRunes = 100

// DetermineFilename extracts the filename for a response, preferring the
// Content-Disposition header and falling back to the last URL path component.
// The result is sanitized and, when it carries no extension, one is guessed
// from the given MIME type.
func DetermineFilename(rawurl string, resp *http.Response, mimeType string) string {
	var candidate string

	if _, name, err := httpheader.ContentDisposition(resp.Header); err == nil && name != "" {
		candidate = name
	}

	if candidate == "" {
		if parsed, err := url.Parse(rawurl); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" {
				candidate = base
			}
		}
	}

	name := ValidateFilename(candidate)
	if name == "" || name == "." {
		name = "download.bin"
	}

	if filepath.Ext(name) == "" {
		if ext := GuessExtension(mimeType); ext != "" {
			name += ext
		}
	}

	return name
}

// ValidateFilename replaces characters unsafe on common filesystems with
// underscores, drops code points outside the Basic Multilingual Plane, and
// caps the length at 100 code points.
func ValidateFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	count := 0
	for _, c := range name {
		if c > 0xFFFF || c == utf8.RuneError {
			continue // keep BMP code points only
		}
		switch c {
		case '\\', '/', ':', '?', '<', '>', '"', '|', '*':
			b.WriteRune('_')
		default:
			b.WriteRune(c)
		}
		count++
		if count >= maxFilenameRunes {
			break
		}
	}
	return b.String()
}

// GuessExtension returns a file extension (with leading dot) for a MIME type.
// The filetype registry is tried first, then the stdlib mapping.
func GuessExtension(mimeType string) string {
	if mimeType == "" {
		return ""
	}

	// the filetype registry first: it maps one extension per type, so the
	// result does not depend on the platform mime tables
	ext := ""
	types.Types.Range(func(_, v interface{}) bool {
		t := v.(types.Type)
		if t.MIME.Value == mimeType && t.Extension != "" {
			ext = "." + t.Extension
			return false
		}
		return true
	})
	if ext != "" {
		return ext
	}

	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}

	return ""
}
