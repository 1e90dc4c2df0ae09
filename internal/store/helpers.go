package store

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalRelated encodes related locations for the diagnostics.related blob.
// An empty list is stored as NULL.
func marshalRelated(related []Related) ([]byte, error) {
	if len(related) == 0 {
		return nil, nil
	}
	b, err := msgpack.Marshal(related)
	if err != nil {
		return nil, fmt.Errorf("encode related: %w", err)
	}
	return b, nil
}

func unmarshalRelated(b []byte) ([]Related, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var related []Related
	if err := msgpack.Unmarshal(b, &related); err != nil {
		return nil, fmt.Errorf("decode related: %w", err)
	}
	return related, nil
}
