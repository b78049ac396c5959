package token

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/walteh/lexdb/pkg/position"
)

// Spans recovers the span of every token in tree from the token widths,
// starting at the tree's own start. Nested trees report their own span.
//
// Widths are computed from the token payloads, so the text the tree was lexed
// from must be valid UTF-8.
func Spans(db Interner, tree TokenTree) []position.Span {
	data := db.TreeData(tree)
	spans := make([]position.Span, len(data.Tokens))

	cursor := data.Span.Start
	for i, tok := range data.Tokens {
		if tok.Kind == KindTree {
			child := db.TreeData(tok.Tree).Span
			spans[i] = position.NewSpan(cursor, child.End)
			cursor = spans[i].End
			continue
		}
		next := cursor + position.Offset(Width(db, tok))
		spans[i] = position.NewSpan(cursor, next)
		cursor = next
	}
	return spans
}

// Width is the number of source bytes tok was lexed from. Trees have no
// intrinsic width; use their span.
func Width(db Interner, tok Token) uint32 {
	switch tok.Kind {
	case KindDelimiter, KindOp, KindUnknown, KindWhitespace:
		return uint32(utf8.RuneLen(tok.Char))
	case KindAlphabetic, KindPrefix, KindNumber:
		return uint32(len(db.Text(tok.Word)))
	case KindComment:
		return tok.Len
	case KindComma:
		return 1
	case KindFormatString:
		return db.FormatStringData(tok.FormatString).Len
	case KindTree:
		return db.TreeData(tok.Tree).Span.Len()
	}
	return 0
}

// Dump renders tree as an indented outline, one token per line. It is meant
// for tests and debugging output.
func Dump(db Interner, tree TokenTree) string {
	var b strings.Builder
	dumpTree(&b, db, tree, 0)
	return b.String()
}

func dumpTree(b *strings.Builder, db Interner, tree TokenTree, depth int) {
	data := db.TreeData(tree)
	fmt.Fprintf(b, "%stree %s %s\n", indent(depth), db.Text(data.Filename), data.Span)
	for _, tok := range data.Tokens {
		dumpToken(b, db, tok, depth+1)
	}
}

func dumpToken(b *strings.Builder, db Interner, tok Token, depth int) {
	pad := indent(depth)
	switch tok.Kind {
	case KindTree:
		dumpTree(b, db, tok.Tree, depth)
	case KindDelimiter, KindOp, KindUnknown, KindWhitespace:
		fmt.Fprintf(b, "%s%s %s\n", pad, tok.Kind, strconv.QuoteRune(tok.Char))
	case KindAlphabetic, KindPrefix, KindNumber:
		fmt.Fprintf(b, "%s%s %s\n", pad, tok.Kind, strconv.Quote(db.Text(tok.Word)))
	case KindComment:
		fmt.Fprintf(b, "%s%s %d\n", pad, tok.Kind, tok.Len)
	case KindComma:
		fmt.Fprintf(b, "%s%s\n", pad, tok.Kind)
	case KindFormatString:
		fs := db.FormatStringData(tok.FormatString)
		fmt.Fprintf(b, "%s%s %d\n", pad, tok.Kind, fs.Len)
		for _, s := range fs.Sections {
			if s.Kind == SectionTree {
				dumpTree(b, db, s.Tree, depth+1)
				continue
			}
			fmt.Fprintf(b, "%sText %s\n", indent(depth+1), strconv.Quote(db.Text(s.Text)))
		}
	}
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
