package parse_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/diff"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/lexer"
	"github.com/walteh/lexdb/pkg/parse"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

type testDb struct {
	*token.Tables
	diagnostic.Bag
	texts map[intern.Word]string
	log   zerolog.Logger
}

func (db *testDb) SourceText(filename intern.Word) string { return db.texts[filename] }

func (db *testDb) Logger() *zerolog.Logger { return &db.log }

func parseString(t *testing.T, text string) (*testDb, intern.Word, []parse.Item, []diagnostic.Diagnostic) {
	t.Helper()
	db := &testDb{Tables: token.NewTables(), texts: map[intern.Word]string{}, log: zerolog.Nop()}
	file := db.Intern("p.dada")
	db.texts[file] = text

	tree := lexer.Lex(db, file)
	require.Empty(t, db.Diagnostics(), "fixtures should lex cleanly")

	items, diags := parse.NewItemParser().ParseFile(db, tree)
	return db, file, items, diags
}

func TestItemParser_Items(t *testing.T) {
	text := "class Point(x, y)\n\nfn main() -> u32 {\n  print(\"hi\")\n}\nasync fn go() {}"
	db, file, items, diags := parseString(t, text)

	assert.Empty(t, diags)

	want := []parse.Item{
		{
			Kind:   parse.ItemClass,
			Name:   db.Intern("Point"),
			Span:   position.NewSpan(0, 17).In(file),
			Params: position.NewSpan(12, 16).In(file),
			Body:   position.NewSpan(17, 17).In(file),
		},
		{
			Kind:   parse.ItemFunction,
			Name:   db.Intern("main"),
			Span:   position.NewSpan(19, 53).In(file),
			Params: position.NewSpan(27, 27).In(file),
			Body:   position.NewSpan(37, 52).In(file),
		},
		{
			Kind:   parse.ItemFunction,
			Name:   db.Intern("go"),
			Async:  true,
			Span:   position.NewSpan(54, 70).In(file),
			Params: position.NewSpan(66, 66).In(file),
			Body:   position.NewSpan(69, 69).In(file),
		},
	}
	diff.RequireEqual(t, want, items)

	assert.Equal(t, "x, y", text[items[0].Params.Start:items[0].Params.End])
	assert.Equal(t, "\n  print(\"hi\")\n", text[items[1].Body.Start:items[1].Body.End])
}

func TestItemParser_Diagnostics(t *testing.T) {
	type diag struct {
		span    position.Span
		message string
	}

	tests := []struct {
		name      string
		input     string
		wantItems int
		wantDiags []diag
	}{
		{
			name:      "class missing closing paren",
			input:     "class A(x",
			wantItems: 1,
			wantDiags: []diag{{position.NewSpan(7, 9), "missing closing `)`"}},
		},
		{
			name:      "function missing closing brace",
			input:     "fn f() { x",
			wantItems: 1,
			wantDiags: []diag{{position.NewSpan(7, 10), "missing closing `}`"}},
		},
		{
			name:      "junk is reported once per run",
			input:     "x = 1\nfn f() {}",
			wantItems: 1,
			wantDiags: []diag{{position.NewSpan(0, 5), "expected `class` or `fn`"}},
		},
		{
			name:      "junk after the last item",
			input:     "fn f() {} )",
			wantItems: 1,
			wantDiags: []diag{{position.NewSpan(10, 11), "expected `class` or `fn`"}},
		},
		{
			name:      "function without a name",
			input:     "fn (x) {}",
			wantItems: 0,
			wantDiags: []diag{
				{position.NewSpan(0, 2), "expected a name after `fn`"},
				{position.NewSpan(3, 9), "expected `class` or `fn`"},
			},
		},
		{
			name:      "async without fn",
			input:     "async class",
			wantItems: 0,
			wantDiags: []diag{
				{position.NewSpan(0, 5), "expected `fn` after `async`"},
				{position.NewSpan(6, 11), "expected a name after `class`"},
			},
		},
		{
			name:      "function without parameters",
			input:     "fn f {}",
			wantItems: 0,
			wantDiags: []diag{
				{position.NewSpan(3, 4), "expected `(` after function name"},
				{position.NewSpan(5, 7), "expected `class` or `fn`"},
			},
		},
		{
			name:      "function without a body",
			input:     "fn f()",
			wantItems: 0,
			wantDiags: []diag{{position.NewSpan(0, 6), "expected a function body"}},
		},
		{
			name:      "comments and whitespace are ignored",
			input:     "# leading\n  class A()  # trailing\n",
			wantItems: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, file, items, diags := parseString(t, tt.input)

			assert.Len(t, items, tt.wantItems)

			got := make([]diag, len(diags))
			for i, d := range diags {
				assert.Equal(t, diagnostic.Error, d.Severity)
				assert.Equal(t, file, d.Span.Filename)
				got[i] = diag{d.Span.Span, d.Message}
			}
			if len(tt.wantDiags) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.wantDiags, got)
		})
	}
}

func TestItemParser_DuplicateNames(t *testing.T) {
	db, file, items, diags := parseString(t, "class A()\nfn a() {}\nfn A() {}\nasync fn a() {}")

	require.Len(t, items, 4)
	diff.RequireEqual(t, []diagnostic.Diagnostic{
		diagnostic.Warningf(position.NewSpan(23, 24).In(file), "`A` is already defined"),
		diagnostic.Warningf(position.NewSpan(39, 40).In(file), "`a` is already defined"),
	}, diags)
	assert.False(t, diagnostic.HasErrors(diags))
	assert.Equal(t, db.Intern("a"), items[3].Name)
}

func TestItemKind_String(t *testing.T) {
	assert.Equal(t, "class", parse.ItemClass.String())
	assert.Equal(t, "function", parse.ItemFunction.String())
	assert.Equal(t, "invalid", parse.ItemKind(0).String())
}
