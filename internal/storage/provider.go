// Package storage gives read-only access to corpus directories.
package storage

import (
	"path"
	"strings"

	"github.com/starford/clarirag/internal/models"
)

// Provider is the interface for reading a corpus tree.
type Provider interface {
	// Root returns the absolute corpus directory.
	Root() string
	// List returns metadata for every file under dir (relative to the root)
	// whose base name satisfies match, in lexical path order.
	List(dir string, match Matcher) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}

// Matcher selects files by base name.
type Matcher func(name string) bool

// Ext matches names ending in one of exts, ignoring case.
func Ext(exts ...string) Matcher {
	return func(name string) bool {
		ext := strings.ToLower(path.Ext(name))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				return true
			}
		}
		return false
	}
}

// Name matches exact base names.
func Name(names ...string) Matcher {
	return func(name string) bool {
		for _, n := range names {
			if name == n {
				return true
			}
		}
		return false
	}
}

// AnyOf matches when any of ms does.
func AnyOf(ms ...Matcher) Matcher {
	return func(name string) bool {
		for _, m := range ms {
			if m(name) {
				return true
			}
		}
		return false
	}
}
