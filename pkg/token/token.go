// Package token holds what the lexer produces: tokens, the interned trees that
// nest them, and format strings with embedded code.
package token

import (
	"github.com/walteh/lexdb/pkg/intern"
)

// Kind discriminates the variants of Token.
type Kind uint8

const (
	KindDelimiter Kind = iota + 1
	KindTree
	KindAlphabetic
	KindPrefix
	KindComment
	KindComma
	KindNumber
	KindOp
	KindFormatString
	KindUnknown
	KindWhitespace
)

var kindNames = map[Kind]string{
	KindDelimiter:    "Delimiter",
	KindTree:         "Tree",
	KindAlphabetic:   "Alphabetic",
	KindPrefix:       "Prefix",
	KindComment:      "Comment",
	KindComma:        "Comma",
	KindNumber:       "Number",
	KindOp:           "Op",
	KindFormatString: "FormatString",
	KindUnknown:      "Unknown",
	KindWhitespace:   "Whitespace",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Invalid"
}

// Token is a tagged variant; which payload field is meaningful depends on Kind.
// Tokens carry no span of their own, see Spans.
type Token struct {
	Kind Kind

	// Char is set for Delimiter, Op, Unknown and Whitespace.
	Char rune
	// Word is set for Alphabetic, Prefix and Number.
	Word intern.Word
	// Len is set for Comment and counts the '#' marker.
	Len uint32
	// Tree is set for Tree.
	Tree TokenTree
	// FormatString is set for FormatString.
	FormatString FormatString
}

func Delimiter(ch rune) Token {
	return Token{Kind: KindDelimiter, Char: ch}
}

func Tree(tree TokenTree) Token {
	return Token{Kind: KindTree, Tree: tree}
}

func Alphabetic(w intern.Word) Token {
	return Token{Kind: KindAlphabetic, Word: w}
}

// Prefix is an identifier written directly against a quote, as in r"...".
func Prefix(w intern.Word) Token {
	return Token{Kind: KindPrefix, Word: w}
}

func Comment(length uint32) Token {
	return Token{Kind: KindComment, Len: length}
}

func Comma() Token {
	return Token{Kind: KindComma}
}

func Number(w intern.Word) Token {
	return Token{Kind: KindNumber, Word: w}
}

func Op(ch rune) Token {
	return Token{Kind: KindOp, Char: ch}
}

func FormatStringToken(fs FormatString) Token {
	return Token{Kind: KindFormatString, FormatString: fs}
}

func Unknown(ch rune) Token {
	return Token{Kind: KindUnknown, Char: ch}
}

func Whitespace(ch rune) Token {
	return Token{Kind: KindWhitespace, Char: ch}
}

// IsTrivia reports whether the token is whitespace or a comment.
func (t Token) IsTrivia() bool {
	return t.Kind == KindWhitespace || t.Kind == KindComment
}

// IsDelimiter reports whether t is the delimiter ch.
func (t Token) IsDelimiter(ch rune) bool {
	return t.Kind == KindDelimiter && t.Char == ch
}

// IsOp reports whether t is the operator ch.
func (t Token) IsOp(ch rune) bool {
	return t.Kind == KindOp && t.Char == ch
}
