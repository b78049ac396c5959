// Package lexer turns source text into token trees.
//
// Bracketed regions and `{...}` interpolations inside string literals nest.
// Nesting is tracked on an explicit stack of frames rather than with native
// recursion, so pathological input cannot exhaust the goroutine stack.
//
// Malformed input never fails: unterminated brackets and strings are closed
// silently at the end of the text, and an unterminated interpolation reports
// one diagnostic. The result always covers the whole lexed region.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

// Db is what the lexer needs from its host: interning, the text of a file, a
// place to report diagnostics and a logger.
type Db interface {
	token.Interner
	diagnostic.Sink
	SourceText(filename intern.Word) string
	Logger() *zerolog.Logger
}

// Lex lexes the full text registered for filename.
func Lex(db Db, filename intern.Word) token.TokenTree {
	text := db.SourceText(filename)
	return lexText(db, filename, text, 0)
}

// LexSpan lexes only the part of the file covered by span. Offsets in the
// result are file offsets, not offsets into the substring. A span reaching past
// the current text is clamped to it.
func LexSpan(db Db, span position.FileSpan) token.TokenTree {
	text := db.SourceText(span.Filename)

	start := min(int(span.Start), len(text))
	end := min(max(int(span.End), start), len(text))

	return lexText(db, span.Filename, text[start:end], start)
}

func lexText(db Db, filename intern.Word, text string, base int) token.TokenTree {
	l := &lexer{
		db:       db,
		log:      db.Logger(),
		filename: filename,
		cur: cursor{
			text: text,
			base: base,
		},
	}
	return l.run()
}

func isOpener(ch rune) bool {
	return ch == '(' || ch == '[' || ch == '{'
}

// closerOf panics unless isOpener(ch).
func closerOf(ch rune) rune {
	switch ch {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	}
	panic("lexer: not an opening delimiter: " + strconv.QuoteRune(ch))
}

func isEscape(ch rune) bool {
	return strings.ContainsRune(`nrt\"`, ch)
}

// escapeOf panics unless isEscape(ch).
func escapeOf(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '\\', '"':
		return ch
	}
	panic("lexer: not an escape: " + strconv.QuoteRune(ch))
}

func isOp(ch rune) bool {
	return strings.ContainsRune("+-/*><&|.:;=", ch)
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentContinue(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// cursor walks text one rune at a time, reporting file offsets.
type cursor struct {
	text string
	base int
	pos  int
}

func (c *cursor) peek() (position.Offset, rune, bool) {
	if c.pos >= len(c.text) {
		return 0, 0, false
	}
	ch, _ := utf8.DecodeRuneInString(c.text[c.pos:])
	return position.Offset(c.base + c.pos), ch, true
}

func (c *cursor) next() (position.Offset, rune, bool) {
	if c.pos >= len(c.text) {
		return 0, 0, false
	}
	ch, size := utf8.DecodeRuneInString(c.text[c.pos:])
	off := position.Offset(c.base + c.pos)
	c.pos += size
	return off, ch, true
}

// peekIs reports whether the next rune is ch.
func (c *cursor) peekIs(ch rune) bool {
	_, next, ok := c.peek()
	return ok && next == ch
}

// offset is the file offset of the next rune, or the end of the text.
func (c *cursor) offset() position.Offset {
	return position.Offset(c.base + c.pos)
}

func (c *cursor) end() position.Offset {
	return position.Offset(c.base + len(c.text))
}

// accumulate consumes runes while match holds, appending them to first.
func (c *cursor) accumulate(first rune, match func(rune) bool) string {
	var b strings.Builder
	b.WriteRune(first)
	for {
		_, ch, ok := c.peek()
		if !ok || !match(ch) {
			return b.String()
		}
		b.WriteRune(ch)
		c.next()
	}
}

// frame is one level of nesting. A tree frame collects tokens until its
// closer; a string frame (str != nil) collects the sections of a literal.
type frame struct {
	// tree frames
	closer    rune
	hasCloser bool
	tokens    []token.Token
	start     position.Offset
	end       position.Offset

	str *stringFrame
}

type stringFrame struct {
	start    position.Offset
	brace    position.Offset
	text     strings.Builder
	sections []token.Section
}

type lexer struct {
	db       Db
	log      *zerolog.Logger
	filename intern.Word
	cur      cursor
	stack    []*frame
}

func (l *lexer) top() *frame {
	return l.stack[len(l.stack)-1]
}

func (l *lexer) pushTreeFrame(closer rune, hasCloser bool) {
	off := l.cur.offset()
	l.stack = append(l.stack, &frame{
		closer:    closer,
		hasCloser: hasCloser,
		start:     off,
		end:       off,
	})
}

func (l *lexer) pushStringFrame(start position.Offset) {
	l.stack = append(l.stack, &frame{str: &stringFrame{start: start}})
}

func (l *lexer) pop() *frame {
	f := l.top()
	l.stack = l.stack[:len(l.stack)-1]
	return f
}

func (l *lexer) push(f *frame, tok token.Token) {
	l.log.Trace().Stringer("kind", tok.Kind).Int("depth", len(l.stack)).Msg("push token")
	f.tokens = append(f.tokens, tok)
}

func (l *lexer) run() token.TokenTree {
	l.pushTreeFrame(0, false)
	for {
		top := l.top()
		if top.str != nil {
			l.scanString(top)
			continue
		}
		if tree, done := l.scanTree(top); done {
			return tree
		}
	}
}

// scanTree consumes tokens into f until f's closer or the end of the text.
// It returns early, leaving f on the stack, whenever a nested frame is pushed.
func (l *lexer) scanTree(f *frame) (token.TokenTree, bool) {
	for {
		pos, ch, ok := l.cur.peek()
		if !ok {
			break
		}
		f.start = min(f.start, pos)
		f.end = max(f.end, pos)

		if f.hasCloser && ch == f.closer {
			break
		}

		l.cur.next()

		switch {
		case isOpener(ch):
			l.push(f, token.Delimiter(ch))
			l.pushTreeFrame(closerOf(ch), true)
			return 0, false

		case isIdentStart(ch):
			text := l.cur.accumulate(ch, isIdentContinue)
			w := l.db.Intern(text)
			// an identifier against a quote is a prefix like r"..."
			if l.cur.peekIs('"') || l.cur.peekIs('\'') {
				l.push(f, token.Prefix(w))
			} else {
				l.push(f, token.Alphabetic(w))
			}

		case ch == '#':
			// the length counts the '#' marker along with the comment text
			text := l.cur.accumulate(ch, func(c rune) bool { return c != '\n' })
			l.push(f, token.Comment(uint32(len(text))))

		case ch == ',':
			l.push(f, token.Comma())

		case isDigit(ch):
			text := l.cur.accumulate(ch, func(c rune) bool { return isDigit(c) || c == '_' })
			l.push(f, token.Number(l.db.Intern(text)))

		case isOp(ch):
			l.push(f, token.Op(ch))

		case ch == '"':
			l.pushStringFrame(pos)
			return 0, false

		case unicode.IsSpace(ch):
			l.push(f, token.Whitespace(ch))

		default:
			l.push(f, token.Unknown(ch))
		}
	}

	tree := l.finishTree(f)
	if len(l.stack) == 0 {
		return tree, true
	}

	parent := l.top()
	if parent.str != nil {
		l.closeInterpolation(parent, tree)
		return 0, false
	}

	l.push(parent, token.Tree(tree))
	if l.cur.peekIs(f.closer) {
		l.cur.next()
		l.push(parent, token.Delimiter(f.closer))
	}
	return 0, false
}

func (l *lexer) finishTree(f *frame) token.TokenTree {
	l.pop()

	if _, _, ok := l.cur.peek(); !ok {
		f.end = max(f.end, l.cur.end())
	}

	return l.db.InternTree(token.TreeData{
		Filename: l.filename,
		Span:     position.NewSpan(f.start, f.end),
		Tokens:   f.tokens,
	})
}

// scanString consumes the body of a string literal whose opening quote has
// already been consumed. It returns early, leaving f on the stack, when an
// interpolation starts.
func (l *lexer) scanString(f *frame) {
	s := f.str
	for {
		off, ch, ok := l.cur.next()
		if !ok || ch == '"' {
			l.finishString()
			return
		}

		if ch == '\\' {
			if _, next, ok := l.cur.peek(); ok && isEscape(next) {
				s.text.WriteRune(escapeOf(next))
				l.cur.next()
				continue
			}
		}

		if ch == '{' {
			s.brace = off
			l.flushText(s)
			l.pushTreeFrame('}', true)
			return
		}

		s.text.WriteRune(ch)
	}
}

// closeInterpolation attaches tree to the string frame f and consumes the
// closing brace. Without one the literal ends here.
func (l *lexer) closeInterpolation(f *frame, tree token.TokenTree) {
	s := f.str
	s.sections = append(s.sections, token.TreeSection(tree))

	if l.cur.peekIs('}') {
		l.cur.next()
		return
	}

	span := position.NewSpan(s.brace, l.cur.offset()).In(l.filename)
	l.log.Debug().Stringer("span", span.Span).Msg("unterminated format string code section")
	l.db.Report(diagnostic.Errorf(span, "format string missing closing brace in code section"))
	l.finishString()
}

func (l *lexer) flushText(s *stringFrame) {
	if s.text.Len() == 0 {
		return
	}
	s.sections = append(s.sections, token.TextSection(l.db.Intern(s.text.String())))
	s.text.Reset()
}

// finishString pops the string frame on top of the stack and appends the
// literal to the enclosing tree frame.
func (l *lexer) finishString() {
	s := l.pop().str
	l.flushText(s)

	fs := l.db.InternFormatString(token.FormatStringData{
		Len:      uint32(l.cur.offset() - s.start),
		Sections: s.sections,
	})
	l.push(l.top(), token.FormatStringToken(fs))
}
