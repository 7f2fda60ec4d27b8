package index

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Stamp identifies the workspace a record was written for.
type Stamp struct {
	Hash    string `yaml:"hash"`
	Version string `yaml:"version"`
}

// Record is one package's ownership ledger. Paths are workspace-relative and
// slash separated. Directory entries carry a trailing slash.
type Record struct {
	Package   string
	Workspace Stamp
	Files     map[Key][]string
}

// NewRecord returns an empty record for pkg.
func NewRecord(pkg string, stamp Stamp) *Record {
	return &Record{Package: pkg, Workspace: stamp, Files: make(map[Key][]string)}
}

// Add records that key installed p. Values are kept sorted and unique.
func (r *Record) Add(key Key, p string) {
	if r.Files == nil {
		r.Files = make(map[Key][]string)
	}
	list := r.Files[key]
	i := sort.SearchStrings(list, p)
	if i < len(list) && list[i] == p {
		return
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = p
	r.Files[key] = list
}

// RemovePath drops p from every file-level entry and deletes entries left
// empty. It reports whether anything changed.
func (r *Record) RemovePath(p string) bool {
	changed := false
	for k, list := range r.Files {
		if k.IsDir() {
			continue
		}
		out := list[:0]
		for _, v := range list {
			if v == p {
				changed = true
				continue
			}
			out = append(out, v)
		}
		if len(out) == 0 {
			delete(r.Files, k)
		} else {
			r.Files[k] = out
		}
	}
	return changed
}

// ReplacePath renames p to q in every file-level entry.
func (r *Record) ReplacePath(p, q string) bool {
	changed := false
	for k, list := range r.Files {
		if k.IsDir() {
			continue
		}
		for i, v := range list {
			if v == p {
				list[i] = q
				changed = true
			}
		}
		sort.Strings(list)
	}
	return changed
}

// Detach converts every directory claim containing p into file-level keys
// for the files currently inside that directory, so that p can change hands
// on its own. Files another package claims at file level in own are left
// out. It reports whether a claim was converted.
func (r *Record) Detach(workspace, p string, own *Ownership) bool {
	type claim struct {
		key Key
		dir string
	}
	var split []claim
	for k, list := range r.Files {
		if !k.IsDir() {
			continue
		}
		out := list[:0]
		for _, v := range list {
			dir := path.Clean(strings.TrimSuffix(v, "/"))
			if strings.HasPrefix(p, dir+"/") {
				split = append(split, claim{key: k, dir: dir})
				continue
			}
			out = append(out, v)
		}
		if len(out) == 0 {
			delete(r.Files, k)
		} else {
			r.Files[k] = out
		}
	}
	for _, c := range split {
		for _, f := range walkFiles(workspace, c.dir) {
			if own != nil {
				if o, ok := own.files[f]; ok && o.Package != r.Package {
					continue
				}
			}
			r.Add(FileKey(path.Join(c.key.Path(), strings.TrimPrefix(f, c.dir+"/"))), f)
		}
	}
	return len(split) > 0
}

// Keys returns the record keys sorted by persisted form.
func (r *Record) Keys() []Key {
	keys := make([]Key, 0, len(r.Files))
	for k := range r.Files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// DirClaims returns the directory paths (without trailing slash) claimed by
// directory keys.
func (r *Record) DirClaims() []string {
	var out []string
	for k, list := range r.Files {
		if !k.IsDir() {
			continue
		}
		for _, v := range list {
			out = append(out, path.Clean(strings.TrimSuffix(v, "/")))
		}
	}
	sort.Strings(out)
	return out
}

// Expand returns every concrete file the record owns in workspace. Directory
// claims are walked on disk; files inside them that another package claims
// at file level are excluded. own may be nil.
func (r *Record) Expand(workspace string, own *Ownership) []string {
	seen := make(map[string]bool)
	for k, list := range r.Files {
		for _, v := range list {
			if !k.IsDir() {
				seen[v] = true
				continue
			}
			dir := path.Clean(strings.TrimSuffix(v, "/"))
			for _, f := range walkFiles(workspace, dir) {
				if own != nil {
					if o, ok := own.files[f]; ok && o.Package != r.Package {
						continue
					}
				}
				seen[f] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// walkFiles lists regular files below dir (workspace-relative), slash
// separated. A missing directory yields nothing.
func walkFiles(workspace, dir string) []string {
	root := filepath.Join(workspace, filepath.FromSlash(dir))
	var out []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workspace, p)
		if err != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out
}
