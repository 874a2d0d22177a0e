package content

import (
	"mime"
	"path/filepath"
)

// extraTypes covers extensions the platform mime database commonly lacks.
var extraTypes = map[string]string{
	".md":    "text/markdown; charset=utf-8",
	".wasm":  "application/wasm",
	".woff2": "font/woff2",
}

// TypeByName returns the Content-Type for a file name by extension, falling
// back to application/octet-stream for anything unknown.
func TypeByName(name string) string {
	ext := filepath.Ext(name)
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
