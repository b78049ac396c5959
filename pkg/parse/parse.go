// Package parse recovers top-level items from a file's token tree.
//
// The parser is a collaborator of the database, not part of the lexical core:
// anything implementing Parser can be plugged in. ItemParser understands just
// enough structure to find classes and functions and to flag brackets the
// lexer left open.
package parse

import (
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

// Db is what a parser needs from its host.
type Db interface {
	token.Interner
}

// Parser turns the root tree of a file into items and diagnostics.
type Parser interface {
	ParseFile(db Db, tree token.TokenTree) ([]Item, []diagnostic.Diagnostic)
}

type ItemKind uint8

const (
	ItemClass ItemKind = iota + 1
	ItemFunction
)

func (k ItemKind) String() string {
	switch k {
	case ItemClass:
		return "class"
	case ItemFunction:
		return "function"
	}
	return "invalid"
}

// Item is a top-level declaration. Params is the inside of the parameter
// list; Body is the inside of a function's braces and is empty for classes.
type Item struct {
	Kind   ItemKind
	Name   intern.Word
	Async  bool
	Span   position.FileSpan
	Params position.FileSpan
	Body   position.FileSpan
}

// ItemParser recognizes
//
//	class Name(fields)
//	[async] fn name(params) [-> ret] { body }
//
// at the top level of a file. Anything else is reported once per run and
// skipped. A second item with a name already in use gets a warning.
type ItemParser struct{}

func NewItemParser() *ItemParser {
	return &ItemParser{}
}

type spanned struct {
	tok  token.Token
	span position.Span
}

type itemParser struct {
	db       Db
	filename intern.Word
	toks     []spanned
	pos      int
	items    []Item
	diags    []diagnostic.Diagnostic
	defined  map[intern.Word]bool
}

func (p *ItemParser) ParseFile(db Db, tree token.TokenTree) ([]Item, []diagnostic.Diagnostic) {
	data := db.TreeData(tree)
	spans := token.Spans(db, tree)

	ip := &itemParser{db: db, filename: data.Filename, defined: map[intern.Word]bool{}}
	for i, tok := range data.Tokens {
		if tok.IsTrivia() {
			continue
		}
		ip.toks = append(ip.toks, spanned{tok: tok, span: spans[i]})
	}

	for !ip.done() {
		switch {
		case ip.atKeyword("class"):
			ip.parseClass()
		case ip.atKeyword("fn"), ip.atKeyword("async"):
			ip.parseFunction()
		default:
			ip.skipJunk()
		}
	}

	return ip.items, ip.diags
}

func (p *itemParser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *itemParser) peek() (spanned, bool) {
	if p.done() {
		return spanned{}, false
	}
	return p.toks[p.pos], true
}

func (p *itemParser) next() spanned {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *itemParser) isKeyword(tok token.Token, kw string) bool {
	return tok.Kind == token.KindAlphabetic && p.db.Text(tok.Word) == kw
}

func (p *itemParser) atKeyword(kw string) bool {
	t, ok := p.peek()
	return ok && p.isKeyword(t.tok, kw)
}

func (p *itemParser) atItemStart() bool {
	return p.atKeyword("class") || p.atKeyword("fn") || p.atKeyword("async")
}

func (p *itemParser) errorf(span position.Span, format string, args ...any) {
	p.diags = append(p.diags, diagnostic.Errorf(span.In(p.filename), format, args...))
}

func (p *itemParser) add(item Item, name spanned) {
	if p.defined[item.Name] {
		p.diags = append(p.diags, diagnostic.Warningf(name.span.In(p.filename), "`%s` is already defined", p.db.Text(item.Name)))
	}
	p.defined[item.Name] = true
	p.items = append(p.items, item)
}

// name consumes an identifier that is not itself an item keyword.
func (p *itemParser) name() (spanned, bool) {
	t, ok := p.peek()
	if !ok || t.tok.Kind != token.KindAlphabetic || p.atItemStart() {
		return spanned{}, false
	}
	return p.next(), true
}

type group struct {
	inner position.Span
	end   position.Offset
}

// group consumes an opening delimiter, its tree and the closer when present.
// A missing closer is reported but the group is still returned.
func (p *itemParser) group(open, close rune) (group, bool) {
	t, ok := p.peek()
	if !ok || !t.tok.IsDelimiter(open) {
		return group{}, false
	}
	if p.pos+1 >= len(p.toks) || p.toks[p.pos+1].tok.Kind != token.KindTree {
		return group{}, false
	}
	p.pos++
	inner := p.next()

	g := group{inner: inner.span, end: inner.span.End}
	if c, ok := p.peek(); ok && c.tok.IsDelimiter(close) {
		p.pos++
		g.end = c.span.End
		return g, true
	}

	p.errorf(position.NewSpan(t.span.Start, inner.span.End), "missing closing `%c`", close)
	return g, true
}

func (p *itemParser) parseClass() {
	kw := p.next()

	name, ok := p.name()
	if !ok {
		p.errorf(kw.span, "expected a name after `class`")
		return
	}

	item := Item{
		Kind:   ItemClass,
		Name:   name.tok.Word,
		Params: position.NewSpan(name.span.End, name.span.End).In(p.filename),
	}
	end := name.span.End
	if g, ok := p.group('(', ')'); ok {
		item.Params = g.inner.In(p.filename)
		end = g.end
	}
	item.Span = position.NewSpan(kw.span.Start, end).In(p.filename)
	item.Body = position.NewSpan(end, end).In(p.filename)

	p.add(item, name)
}

func (p *itemParser) parseFunction() {
	first := p.next()
	item := Item{Kind: ItemFunction}

	if p.isKeyword(first.tok, "async") {
		item.Async = true
		if !p.atKeyword("fn") {
			p.errorf(first.span, "expected `fn` after `async`")
			return
		}
		p.pos++
	}

	name, ok := p.name()
	if !ok {
		p.errorf(first.span, "expected a name after `fn`")
		return
	}
	item.Name = name.tok.Word

	params, ok := p.group('(', ')')
	if !ok {
		p.errorf(name.span, "expected `(` after function name")
		return
	}
	item.Params = params.inner.In(p.filename)

	// return type, if any, runs up to the body
	for {
		t, ok := p.peek()
		if !ok || t.tok.IsDelimiter('{') || p.atItemStart() {
			break
		}
		p.pos++
	}

	body, ok := p.group('{', '}')
	if !ok {
		p.errorf(position.NewSpan(first.span.Start, params.end), "expected a function body")
		return
	}
	item.Body = body.inner.In(p.filename)
	item.Span = position.NewSpan(first.span.Start, body.end).In(p.filename)

	p.add(item, name)
}

// skipJunk consumes tokens up to the next item and reports them as one error.
func (p *itemParser) skipJunk() {
	first := p.next()
	last := first
	for !p.done() && !p.atItemStart() {
		last = p.next()
	}
	p.errorf(position.NewSpan(first.span.Start, last.span.End), "expected `class` or `fn`")
}
