package util

import (
	"net/http"
	"strings"
)

// SniffLen is the number of leading bytes DetectMIME looks at.
const SniffLen = 512

func DetectMIME(header []byte) string {
	if len(header) > SniffLen {
		header = header[:SniffLen]
	}
	return http.DetectContentType(header)
}

func IsImageMIME(mimeType string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(cleaned, "image/")
}

// IsAvatarMIME reports whether an image type can be decoded into an avatar.
func IsAvatarMIME(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp":
		return true
	default:
		return false
	}
}
