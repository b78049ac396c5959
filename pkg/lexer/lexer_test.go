package lexer_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/diff"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/lexer"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

type testDb struct {
	*token.Tables
	diagnostic.Bag
	texts map[intern.Word]string
	log   zerolog.Logger
}

func newTestDb() *testDb {
	return &testDb{
		Tables: token.NewTables(),
		texts:  map[intern.Word]string{},
		log:    zerolog.Nop(),
	}
}

func (db *testDb) SourceText(filename intern.Word) string { return db.texts[filename] }

func (db *testDb) Logger() *zerolog.Logger { return &db.log }

func (db *testDb) file(name, text string) intern.Word {
	w := db.Intern(name)
	db.texts[w] = text
	return w
}

func lexString(t *testing.T, text string) (*testDb, token.TokenTree) {
	t.Helper()
	db := newTestDb()
	return db, lexer.Lex(db, db.file("t.dada", text))
}

func TestLex_Dump(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty",
			input: "",
			want:  "tree t.dada [0,0)\n",
		},
		{
			name:  "balanced parens",
			input: "(a)",
			want: `tree t.dada [0,3)
  Delimiter '('
  tree t.dada [1,2)
    Alphabetic "a"
  Delimiter ')'
`,
		},
		{
			name:  "empty brackets keep a span",
			input: "()",
			want: `tree t.dada [0,2)
  Delimiter '('
  tree t.dada [1,1)
  Delimiter ')'
`,
		},
		{
			name:  "unterminated bracket has no closer",
			input: "(a",
			want: `tree t.dada [0,2)
  Delimiter '('
  tree t.dada [1,2)
    Alphabetic "a"
`,
		},
		{
			name:  "nested brackets of every kind",
			input: "[{x}]",
			want: `tree t.dada [0,5)
  Delimiter '['
  tree t.dada [1,4)
    Delimiter '{'
    tree t.dada [2,3)
      Alphabetic "x"
    Delimiter '}'
  Delimiter ']'
`,
		},
		{
			name:  "comment then code",
			input: "#comment\ncode",
			want: `tree t.dada [0,13)
  Comment 8
  Whitespace '\n'
  Alphabetic "code"
`,
		},
		{
			name:  "identifier against a quote is a prefix",
			input: `r"x"`,
			want: `tree t.dada [0,4)
  Prefix "r"
  FormatString 3
    Text "x"
`,
		},
		{
			name:  "identifier against a single quote is a prefix",
			input: `b'`,
			want: `tree t.dada [0,2)
  Prefix "b"
  Unknown '\''
`,
		},
		{
			name:  "format string with code",
			input: `"a{1}b"`,
			want: `tree t.dada [0,7)
  FormatString 7
    Text "a"
    tree t.dada [3,4)
      Number "1"
    Text "b"
`,
		},
		{
			name:  "numbers do not absorb letters",
			input: "123abc",
			want: `tree t.dada [0,6)
  Number "123"
  Alphabetic "abc"
`,
		},
		{
			name:  "numbers keep underscores",
			input: "1_000",
			want: `tree t.dada [0,5)
  Number "1_000"
`,
		},
		{
			name:  "identifiers keep digits after the first letter",
			input: "_a1",
			want: `tree t.dada [0,3)
  Alphabetic "_a1"
`,
		},
		{
			name:  "operators and commas",
			input: "a+b, c",
			want: `tree t.dada [0,6)
  Alphabetic "a"
  Op '+'
  Alphabetic "b"
  Comma
  Whitespace ' '
  Alphabetic "c"
`,
		},
		{
			name:  "every operator",
			input: "+-/*><&|.:;=",
			want: `tree t.dada [0,12)
  Op '+'
  Op '-'
  Op '/'
  Op '*'
  Op '>'
  Op '<'
  Op '&'
  Op '|'
  Op '.'
  Op ':'
  Op ';'
  Op '='
`,
		},
		{
			name:  "escapes and an unknown escape",
			input: `"x\ny\q"`,
			want: `tree t.dada [0,8)
  FormatString 8
    Text "x\ny\\q"
`,
		},
		{
			name:  "escaped quote does not end the literal",
			input: `"a\"b"`,
			want: `tree t.dada [0,6)
  FormatString 6
    Text "a\"b"
`,
		},
		{
			name:  "unterminated string runs to the end",
			input: `"abc`,
			want: `tree t.dada [0,4)
  FormatString 4
    Text "abc"
`,
		},
		{
			name:  "whitespace is never merged",
			input: "\t \n",
			want: `tree t.dada [0,3)
  Whitespace '\t'
  Whitespace ' '
  Whitespace '\n'
`,
		},
		{
			name:  "non-ascii letters are unknown",
			input: "é",
			want: `tree t.dada [0,2)
  Unknown 'é'
`,
		},
		{
			name:  "interpolation containing braces",
			input: `"{ {a} }"`,
			want: `tree t.dada [0,9)
  FormatString 9
    tree t.dada [2,7)
      Whitespace ' '
      Delimiter '{'
      tree t.dada [4,5)
        Alphabetic "a"
      Delimiter '}'
      Whitespace ' '
`,
		},
		{
			name:  "string inside brackets",
			input: `("a")`,
			want: `tree t.dada [0,5)
  Delimiter '('
  tree t.dada [1,4)
    FormatString 3
      Text "a"
  Delimiter ')'
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, tree := lexString(t, tt.input)
			got := token.Dump(db, tree)
			if d := diff.Lines(tt.want, got); d != "" {
				t.Errorf("unexpected token tree: %s", d)
			}
			assert.Empty(t, db.Diagnostics(), "no diagnostics expected")
		})
	}
}

func TestLex_RootCoversText(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"   \n\t",
		"abc",
		"(((",
		")))",
		"fn main() { print(\"hi {name}\") }",
		"\"{",
		"#only a comment",
		"a}b",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			db, tree := lexString(t, input)
			data := db.TreeData(tree)
			assert.Equal(t, position.NewSpan(0, position.Offset(len(input))), data.Span)
		})
	}
}

func TestLex_UnterminatedInterpolation(t *testing.T) {
	db, tree := lexString(t, `"a{1b"`)

	diags := db.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostic.Error, diags[0].Severity)
	assert.Equal(t, position.NewSpan(2, 6), diags[0].Span.Span, "diagnostic should start at the brace")
	assert.Equal(t, db.Intern("t.dada"), diags[0].Span.Filename)

	toks := db.TreeData(tree).Tokens
	require.Len(t, toks, 1)
	require.Equal(t, token.KindFormatString, toks[0].Kind)

	fs := db.FormatStringData(toks[0].FormatString)
	assert.Equal(t, uint32(6), fs.Len)
	require.Len(t, fs.Sections, 2)
	assert.Equal(t, token.TextSection(db.Intern("a")), fs.Sections[0])
	assert.Equal(t, token.SectionTree, fs.Sections[1].Kind)

	want := `tree t.dada [3,6)
  Number "1"
  Prefix "b"
  FormatString 1
`
	if d := diff.Lines(want, token.Dump(db, fs.Sections[1].Tree)); d != "" {
		t.Errorf("unexpected interpolation tree: %s", d)
	}
}

func TestLex_UnterminatedBracketIsSilent(t *testing.T) {
	for _, input := range []string{"(a", "[", "{{", "f(a, [b"} {
		t.Run(input, func(t *testing.T) {
			db, _ := lexString(t, input)
			assert.Empty(t, db.Diagnostics())
		})
	}
}

func TestLex_FormatStringSectionsNeverAdjacentText(t *testing.T) {
	db, tree := lexString(t, `"a{}b{x}{y}c\n"`)

	fs := db.FormatStringData(db.TreeData(tree).Tokens[0].FormatString)
	for i := 1; i < len(fs.Sections); i++ {
		assert.False(t,
			fs.Sections[i-1].Kind == token.SectionText && fs.Sections[i].Kind == token.SectionText,
			"text sections %d and %d are adjacent", i-1, i)
	}

	kinds := make([]token.SectionKind, len(fs.Sections))
	for i, s := range fs.Sections {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []token.SectionKind{
		token.SectionText, token.SectionTree,
		token.SectionText, token.SectionTree,
		token.SectionTree,
		token.SectionText,
	}, kinds)
}

// checkBalanced asserts that every opening delimiter in tree is followed by a
// Tree token and its matching closer.
func checkBalanced(t *testing.T, db token.Interner, tree token.TokenTree) {
	t.Helper()
	closers := map[rune]rune{'(': ')', '[': ']', '{': '}'}

	toks := db.TreeData(tree).Tokens
	for i, tok := range toks {
		if tok.Kind == token.KindTree {
			checkBalanced(t, db, tok.Tree)
			continue
		}
		closer, opening := closers[tok.Char]
		if tok.Kind != token.KindDelimiter || !opening {
			continue
		}
		require.Greater(t, len(toks), i+2, "opening %q at token %d is not followed by tree and closer", tok.Char, i)
		assert.Equal(t, token.KindTree, toks[i+1].Kind)
		assert.Equal(t, token.Delimiter(closer), toks[i+2])
	}
}

func TestLex_BalancedBrackets(t *testing.T) {
	inputs := []string{
		"()",
		"([{}])",
		"f(a)[b]{c}",
		"a(b(c(d)))",
		"{ x: [1, 2], y: (3) }",
		`print("{a(b)}")`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			db, tree := lexString(t, input)
			checkBalanced(t, db, tree)
		})
	}
}

// checkTiling asserts the spans of the tokens of tree are contiguous and
// exactly fill the tree's span.
func checkTiling(t *testing.T, db token.Interner, tree token.TokenTree) {
	t.Helper()
	data := db.TreeData(tree)
	spans := token.Spans(db, tree)

	cursor := data.Span.Start
	for i, tok := range data.Tokens {
		assert.Equal(t, cursor, spans[i].Start, "token %d (%s) should start where the previous ended", i, tok.Kind)
		if tok.Kind == token.KindTree {
			assert.Equal(t, db.TreeData(tok.Tree).Span, spans[i])
			checkTiling(t, db, tok.Tree)
		}
		cursor = spans[i].End
	}
	assert.Equal(t, data.Span.End, cursor, "tokens should end where the tree ends")
}

func TestLex_TokenSpansTileTheTree(t *testing.T) {
	inputs := []string{
		"fn main() {\n  print(\"hello {name}!\") # greet\n}\n",
		"(a",
		"(",
		"class Point(x, y)\n",
		`"a{1b"`,
		"é + ü",
		"[[[]]]",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			db, tree := lexString(t, input)
			checkTiling(t, db, tree)
		})
	}
}

func TestLexSpan(t *testing.T) {
	db := newTestDb()
	text := "fn f() { a(b) }"
	file := db.file("span.dada", text)

	full := lexer.Lex(db, file)

	// the body tree is the one right after the '{' delimiter
	var body token.TokenTree
	toks := db.TreeData(full).Tokens
	for i, tok := range toks {
		if tok.IsDelimiter('{') {
			body = toks[i+1].Tree
		}
	}
	require.NotZero(t, body)
	bodySpan := db.TreeData(body).Span
	assert.Equal(t, position.NewSpan(8, 14), bodySpan)

	relexed := lexer.LexSpan(db, bodySpan.In(file))
	assert.Equal(t, body, relexed, "re-lexing the body span should give the identical interned tree")

	t.Run("offsets are absolute", func(t *testing.T) {
		tree := lexer.LexSpan(db, position.NewSpan(9, 10).In(file))
		data := db.TreeData(tree)
		assert.Equal(t, position.NewSpan(9, 10), data.Span)
		assert.Equal(t, []token.Token{token.Alphabetic(db.Intern("a"))}, data.Tokens)
	})

	t.Run("spans past the end are clamped", func(t *testing.T) {
		tree := lexer.LexSpan(db, position.NewSpan(13, 400).In(file))
		data := db.TreeData(tree)
		assert.Equal(t, position.NewSpan(13, 15), data.Span)
		assert.Len(t, data.Tokens, 2)
	})

	t.Run("empty span", func(t *testing.T) {
		tree := lexer.LexSpan(db, position.NewSpan(4, 4).In(file))
		data := db.TreeData(tree)
		assert.Equal(t, position.NewSpan(4, 4), data.Span)
		assert.Empty(t, data.Tokens)
	})
}

func TestLex_DeepNesting(t *testing.T) {
	const depth = 20000
	input := strings.Repeat("(", depth) + strings.Repeat(")", depth)

	db, tree := lexString(t, input)

	seen := 0
	for {
		toks := db.TreeData(tree).Tokens
		if len(toks) == 0 {
			break
		}
		require.Len(t, toks, 3)
		tree = toks[1].Tree
		seen++
	}
	assert.Equal(t, depth, seen)
}

func TestLex_Interning(t *testing.T) {
	db := newTestDb()
	a := db.file("a.dada", "f(x)")
	b := db.file("b.dada", "f(x)")

	assert.Equal(t, lexer.Lex(db, a), lexer.Lex(db, a), "lexing twice gives the same handle")
	assert.NotEqual(t, lexer.Lex(db, a), lexer.Lex(db, b), "trees remember their file")
}
