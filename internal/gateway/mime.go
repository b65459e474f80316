package gateway

import (
	"fmt"
	"strings"
)

const defaultContentType = "application/octet-stream"

var previewTypes = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"txt":  "text/plain",
	"html": "text/html",
	"mp4":  "video/mp4",
}

// PreviewContentType guesses the MIME type from the extension of name.
// Unknown or missing extensions fall back to application/octet-stream.
func PreviewContentType(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return defaultContentType
	}
	if ct, ok := previewTypes[strings.ToLower(name[idx+1:])]; ok {
		return ct
	}
	return defaultContentType
}

// ContentDisposition renders `inline` or `attachment` with the display name
// percent-encoded.
func ContentDisposition(preview bool, name string) string {
	kind := "attachment"
	if preview {
		kind = "inline"
	}
	return fmt.Sprintf(`%s; filename="%s"`, kind, EncodeURIComponent(name))
}

// EncodeURIComponent escapes everything except A-Z a-z 0-9 and - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
