package utils

import (
	"path/filepath"
	"strings"
)

// ImageMIMEType returns the MIME type for an image file path based on its
// extension. Unknown extensions default to image/png.
func ImageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// IsImageExtension checks whether the path has a supported image extension
func IsImageExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".gif", ".webp":
		return true
	default:
		return false
	}
}
