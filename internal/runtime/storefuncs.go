package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/varlens/internal/store"
)

// makeDeclarationsByNameFn creates the "declarations_by_name" host function,
// which looks a name up across the workspace index. Without an index it
// returns an empty list.
//
// declarations_by_name(name) → []map
func makeDeclarationsByNameFn(ds store.DataStore) *object.Builtin {
	return object.NewBuiltin("declarations_by_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declarations_by_name", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("declarations_by_name: %v", err)
		}
		if ds == nil {
			return object.NewList([]object.Object{})
		}

		decls, err := ds.DeclarationsByName(name)
		if err != nil {
			return object.Errorf("declarations_by_name: %v", err)
		}
		return storeDeclarationsToList(decls)
	})
}

// storeDeclarationsToList converts indexed declarations to a Risor list of maps.
func storeDeclarationsToList(decls []*store.Declaration) object.Object {
	results := make([]object.Object, 0, len(decls))
	for _, d := range decls {
		m := map[string]object.Object{
			"id":              object.NewInt(d.ID),
			"file_id":         object.NewInt(d.FileID),
			"name":            object.NewString(d.Name),
			"kind":            object.NewString(d.Kind),
			"qualified_name":  object.NewString(d.QualifiedName),
			"start_line":      object.NewInt(int64(d.StartLine)),
			"start_col":       object.NewInt(int64(d.StartCol)),
			"end_line":        object.NewInt(int64(d.EndLine)),
			"end_col":         object.NewInt(int64(d.EndCol)),
			"name_start_line": object.NewInt(int64(d.NameStartLine)),
			"name_start_col":  object.NewInt(int64(d.NameStartCol)),
			"name_end_line":   object.NewInt(int64(d.NameEndLine)),
			"name_end_col":    object.NewInt(int64(d.NameEndCol)),
		}
		if d.ParentID != nil {
			m["parent_id"] = object.NewInt(*d.ParentID)
		}
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		return 0
	}
	return int(n)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
