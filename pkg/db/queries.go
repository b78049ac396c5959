package db

import (
	"github.com/rs/zerolog"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/lexer"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

// queryDb is the lexer's view of the database while one query body runs.
// Reads of source text become dependencies of that query and diagnostics are
// collected into its result.
type queryDb struct {
	*token.Tables
	diagnostic.Bag
	rt    *runtime
	frame *frame
}

var _ lexer.Db = (*queryDb)(nil)

func (q *queryDb) SourceText(filename intern.Word) string {
	return q.rt.fetch(key{query: QuerySourceText, filename: filename}, q.frame).(string)
}

func (q *queryDb) Logger() *zerolog.Logger {
	return q.rt.log
}

func (r *runtime) queryDb(f *frame) *queryDb {
	return &queryDb{Tables: r.st.tables, rt: r, frame: f}
}

func (r *runtime) executeLexFile(filename intern.Word, f *frame) any {
	q := r.queryDb(f)
	tree := lexer.Lex(q, filename)
	return lexResult{tree: tree, diags: q.Diagnostics()}
}

func (r *runtime) executeLexSpan(span position.FileSpan, f *frame) any {
	q := r.queryDb(f)
	tree := lexer.LexSpan(q, span)
	return lexResult{tree: tree, diags: q.Diagnostics()}
}

func (r *runtime) executeParseFile(filename intern.Word, f *frame) any {
	lexed := r.fetch(key{query: QueryLexFile, filename: filename}, f).(lexResult)
	items, diags := r.st.parser.ParseFile(r.st.tables, lexed.tree)
	return parseResult{items: items, diags: diags}
}

func (r *runtime) sourceText(filename intern.Word) string {
	return r.fetch(key{query: QuerySourceText, filename: filename}, nil).(string)
}

func (r *runtime) lexFile(filename intern.Word) lexResult {
	return r.fetch(key{query: QueryLexFile, filename: filename}, nil).(lexResult)
}

func (r *runtime) lexSpan(span position.FileSpan) lexResult {
	return r.fetch(key{query: QueryLexSpan, filename: span.Filename, span: span.Span}, nil).(lexResult)
}

func (r *runtime) parseFile(filename intern.Word) parseResult {
	return r.fetch(key{query: QueryParseFile, filename: filename}, nil).(parseResult)
}

// diagnostics lists the lexer's diagnostics for filename followed by the
// parser's. The returned slice is never shared with the memo table.
func (r *runtime) diagnostics(filename intern.Word) []diagnostic.Diagnostic {
	lexed := r.lexFile(filename)
	parsed := r.parseFile(filename)

	out := make([]diagnostic.Diagnostic, 0, len(lexed.diags)+len(parsed.diags))
	out = append(out, lexed.diags...)
	return append(out, parsed.diags...)
}
