package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/varlens/internal/diagnostics"
	"github.com/jward/varlens/internal/symbols"
	"github.com/jward/varlens/internal/syntax"
)

// FileInput is the document a rule inspects.
type FileInput struct {
	Path         string
	Interface    string
	Tree         *syntax.Tree
	Declarations []symbols.Declaration
	References   []symbols.Occurrence
}

// NewFileInput collects rule input from an analysed document.
func NewFileInput(filePath string, t *syntax.Tree, tbl *symbols.Table) *FileInput {
	name, _ := tbl.InterfaceName()
	return &FileInput{
		Path:         filePath,
		Interface:    name,
		Tree:         t,
		Declarations: symbols.Declarations(t),
		References:   tbl.TypeRefs.All(),
	}
}

// buildGlobals constructs the full set of globals exposed to a rule.
func (r *Runtime) buildGlobals(in *FileInput, rep *reporter) map[string]any {
	globals := map[string]any{
		"file_path":            in.Path,
		"interface_name":       in.Interface,
		"declarations":         declarationsToList(in.Declarations),
		"references":           referencesToList(in.Tree, in.References),
		"source_line":          makeSourceLineFn(in.Tree),
		"report":               makeReportFn(rep),
		"declarations_by_name": makeDeclarationsByNameFn(r.data),
		"log":                  mustProxy(&logObject{log: r.log, rule: rep.rule, file: in.Path}),
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

func spanFields(m map[string]object.Object, prefix string, s syntax.Span) {
	m[prefix+"start_line"] = object.NewInt(int64(s.Start.Line))
	m[prefix+"start_col"] = object.NewInt(int64(s.Start.Column))
	m[prefix+"end_line"] = object.NewInt(int64(s.End.Line))
	m[prefix+"end_col"] = object.NewInt(int64(s.End.Column))
}

func declarationsToList(decls []symbols.Declaration) object.Object {
	results := make([]object.Object, 0, len(decls))
	for _, d := range decls {
		m := map[string]object.Object{
			"name":  object.NewString(d.Name),
			"kind":  object.NewString(string(d.Kind)),
			"scope": object.NewString(d.Scope),
		}
		spanFields(m, "", d.Span)
		spanFields(m, "name_", d.NameSpan)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

// referencesToList converts type reference occurrences. The context is the
// kind of node holding the reference, such as struct_field or optional.
func referencesToList(t *syntax.Tree, refs []symbols.Occurrence) object.Object {
	results := make([]object.Object, 0, len(refs))
	for _, o := range refs {
		m := map[string]object.Object{
			"name":    object.NewString(o.Name),
			"context": object.NewString(ReferenceContext(t, o)),
		}
		spanFields(m, "", o.Span)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

// ReferenceContext names the node kind a type reference occurrence sits in.
func ReferenceContext(t *syntax.Tree, o symbols.Occurrence) string {
	ref, ok := t.Parent(t.Node(o.Node))
	if !ok {
		return ""
	}
	holder, ok := t.Parent(ref)
	if !ok {
		return ""
	}
	return holder.Kind.String()
}

// makeSourceLineFn creates the "source_line" host function.
//
// source_line(n) → string or nil
func makeSourceLineFn(t *syntax.Tree) *object.Builtin {
	return object.NewBuiltin("source_line", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("source_line", 1, len(args))
		}
		n, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("source_line: %v", err)
		}
		line, ok := t.Line(int(n))
		if !ok {
			return object.Nil
		}
		return object.NewString(line)
	})
}

// reporter collects the findings of one rule run.
type reporter struct {
	rule  string
	found []diagnostics.Diagnostic
}

// makeReportFn creates the "report" host function.
//
// report(map) or report(map, message). The map supplies message, severity
// (error|warning|info|hint, default warning) and a position; a declaration
// map is reported at its name.
func makeReportFn(rep *reporter) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 && len(args) != 2 {
			return object.Errorf("report: expected 1 or 2 arguments, got %d", len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}

		msg := getString(m, "message")
		if len(args) == 2 {
			if msg, err = toString(args[1]); err != nil {
				return object.Errorf("report: message: %v", err)
			}
		}
		if msg == "" {
			return object.Errorf("report: missing message")
		}

		severity := diagnostics.SeverityWarning
		if s := getString(m, "severity"); s != "" {
			if severity, err = diagnostics.ParseSeverity(s); err != nil {
				return object.Errorf("report: %v", err)
			}
		}

		prefix := ""
		if _, ok := m["name_start_line"]; ok {
			prefix = "name_"
		}
		span := syntax.Span{
			Start: syntax.Point{Line: getInt(m, prefix+"start_line"), Column: getInt(m, prefix+"start_col")},
			End:   syntax.Point{Line: getInt(m, prefix+"end_line"), Column: getInt(m, prefix+"end_col")},
		}
		if span.End.Before(span.Start) {
			span.End = span.Start
		}

		rep.found = append(rep.found, diagnostics.Diagnostic{
			Severity: severity,
			Code:     diagnostics.RuleCode(rep.rule),
			Span:     span,
			Message:  msg,
		})
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for rules.
type logObject struct {
	log  zerolog.Logger
	rule string
	file string
}

func (l *logObject) Info(msg string) {
	l.log.Info().Str("rule", l.rule).Str("file", l.file).Msg(msg)
}

func (l *logObject) Warn(msg string) {
	l.log.Warn().Str("rule", l.rule).Str("file", l.file).Msg(msg)
}

func (l *logObject) Error(msg string) {
	l.log.Error().Str("rule", l.rule).Str("file", l.file).Msg(msg)
}
