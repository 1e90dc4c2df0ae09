package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ContentHash returns the hex SHA-256 of a file's contents. Files whose hash
// matches the stored one are skipped on re-index.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// ComputeRulesHash hashes a set of rule scripts keyed by path. Paths are
// sorted so the result does not depend on discovery order.
func ComputeRulesHash(scripts map[string]string) string {
	paths := make([]string, 0, len(scripts))
	for p := range scripts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s\n%d\n", p, len(scripts[p]))
		h.Write([]byte(scripts[p]))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
