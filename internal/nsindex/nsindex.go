// Package nsindex organises qualified declaration names by their dotted
// namespace segments.
package nsindex

import (
	"sort"
	"strings"

	"github.com/dghubble/trie"
)

// Entry is one declaration stored under its qualified name.
type Entry struct {
	QualifiedName string
	Kind          string
	Path          string
	DeclarationID int64
}

// Index is a trie of qualified names. It is not safe for concurrent writes.
type Index struct {
	names *trie.PathTrie
	size  int
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		names: trie.NewPathTrieWithConfig(&trie.PathTrieConfig{
			Segmenter: dotSegmenter,
		}),
	}
}

// dotSegmenter splits "a.b.c" into "a", ".b", ".c". It does not allocate.
func dotSegmenter(path string, start int) (segment string, next int) {
	if len(path) == 0 || start < 0 || start > len(path)-1 {
		return "", -1
	}
	end := strings.IndexRune(path[start+1:], '.')
	if end == -1 {
		return path[start:], -1
	}
	return path[start : start+end+1], start + end + 1
}

// Put adds e. Several declarations may share a qualified name.
func (x *Index) Put(e Entry) {
	var list []Entry
	if v := x.names.Get(e.QualifiedName); v != nil {
		list = v.([]Entry)
	}
	x.names.Put(e.QualifiedName, append(list, e))
	x.size++
}

// Len returns the number of entries.
func (x *Index) Len() int { return x.size }

// Get returns the entries stored under exactly name.
func (x *Index) Get(name string) []Entry {
	if v := x.names.Get(name); v != nil {
		return v.([]Entry)
	}
	return nil
}

// Under returns every entry whose qualified name is prefix or lies below it,
// sorted by qualified name. An empty prefix lists everything. Prefixes match
// whole segments only: "org.ex" does not match "org.example.Box".
func (x *Index) Under(prefix string) []Entry {
	var out []Entry
	_ = x.names.Walk(func(key string, value interface{}) error {
		list := value.([]Entry)
		if len(list) > 0 && underPrefix(list[0].QualifiedName, prefix) {
			out = append(out, list...)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

func underPrefix(name, prefix string) bool {
	if prefix == "" || name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix) && name[len(prefix)] == '.'
}

// Nearest returns the entries of the longest stored name that is a segment
// prefix of name, such as the interface enclosing a qualified type name.
func (x *Index) Nearest(name string) ([]Entry, bool) {
	var last []Entry
	_ = x.names.WalkPath(name, func(key string, value interface{}) error {
		last = value.([]Entry)
		return nil
	})
	return last, last != nil
}

// Children lists the distinct next segments below prefix, such as the
// declaration names of one interface.
func (x *Index) Children(prefix string) []string {
	seen := map[string]bool{}
	for _, e := range x.Under(prefix) {
		rest := strings.TrimPrefix(e.QualifiedName, prefix)
		rest = strings.TrimPrefix(rest, ".")
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '.'); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
