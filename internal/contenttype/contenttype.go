// Package contenttype resolves the MIME type of local paths.
package contenttype

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// Folder is the synthetic type reported for directories
	Folder = "Folder"
	// Default is used when neither content nor extension tell anything
	Default = "application/octet-stream"
)

// Resolver maps a path to a MIME type string
type Resolver interface {
	Resolve(path string) string
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(path string) string

func (f ResolverFunc) Resolve(path string) string {
	return f(path)
}

// Sniffer detects types from file content and falls back to the extension
type Sniffer struct{}

// NewSniffer returns the default resolver
func NewSniffer() *Sniffer {
	return &Sniffer{}
}

// Resolve never fails; unreadable paths resolve by extension or to Default.
func (s *Sniffer) Resolve(path string) string {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return Folder
	}
	if err == nil {
		if mt, err := mimetype.DetectFile(path); err == nil && mt != nil && mt.String() != Default {
			return mt.String()
		}
	}
	return fromExtension(path)
}

func fromExtension(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return Default
}
