package index

import (
	"path"
	"strings"
)

// Key identifies what a record entry owns.
type Key struct {
	dir  bool
	path string
}

// FileKey returns a file-level key.
func FileKey(p string) Key {
	return Key{path: path.Clean(p)}
}

// DirKey returns a directory-level key.
func DirKey(p string) Key {
	return Key{dir: true, path: path.Clean(strings.TrimSuffix(p, "/"))}
}

// ParseKey decodes the persisted form: a trailing slash means directory.
func ParseKey(s string) Key {
	if strings.HasSuffix(s, "/") {
		return DirKey(s)
	}
	return FileKey(s)
}

// IsDir reports whether k is a directory key.
func (k Key) IsDir() bool { return k.dir }

// Path returns the key path without a trailing slash.
func (k Key) Path() string { return k.path }

// String returns the persisted form.
func (k Key) String() string {
	if k.dir {
		return k.path + "/"
	}
	return k.path
}
