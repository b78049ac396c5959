package token

import (
	"encoding/binary"
	"slices"
	"strings"

	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/position"
)

// TokenTree is a handle to an interned TreeData. Two trees with the same
// filename, span and tokens share a handle, so == is structural equality.
type TokenTree uint32

// TreeData is the content of a TokenTree. Tokens must not be modified.
type TreeData struct {
	Filename intern.Word
	Span     position.Span
	Tokens   []Token
}

// FileSpan is the tree's span qualified by its filename.
func (d TreeData) FileSpan() position.FileSpan {
	return d.Span.In(d.Filename)
}

// FormatString is a handle to an interned FormatStringData.
type FormatString uint32

// FormatStringData is a string literal split into literal text and embedded
// code. Two Text sections are never adjacent.
type FormatStringData struct {
	// Len is the byte length of the literal in the source, opening quote
	// included.
	Len      uint32
	Sections []Section
}

type SectionKind uint8

const (
	SectionText SectionKind = iota + 1
	SectionTree
)

// Section is one piece of a FormatString: a Text run or a `{...}` TokenTree.
type Section struct {
	Kind SectionKind
	Text intern.Word
	Tree TokenTree
}

func TextSection(w intern.Word) Section {
	return Section{Kind: SectionText, Text: w}
}

func TreeSection(tree TokenTree) Section {
	return Section{Kind: SectionTree, Tree: tree}
}

// Interner is everything that owns interned lexer output.
type Interner interface {
	Intern(text string) intern.Word
	Text(w intern.Word) string
	InternTree(data TreeData) TokenTree
	TreeData(tree TokenTree) TreeData
	InternFormatString(data FormatStringData) FormatString
	FormatStringData(fs FormatString) FormatStringData
}

var _ Interner = (*Tables)(nil)

// Tables is the arena for words, trees and format strings. It is safe for
// concurrent use.
type Tables struct {
	words         *intern.Interner
	trees         intern.Table[TokenTree, TreeData]
	formatStrings intern.Table[FormatString, FormatStringData]
}

func NewTables() *Tables {
	return &Tables{words: intern.NewInterner()}
}

func (t *Tables) Intern(text string) intern.Word {
	return t.words.Intern(text)
}

func (t *Tables) Text(w intern.Word) string {
	return t.words.Text(w)
}

func (t *Tables) InternTree(data TreeData) TokenTree {
	data.Tokens = slices.Clip(slices.Clone(data.Tokens))
	return t.trees.Intern(data.key(), data)
}

func (t *Tables) TreeData(tree TokenTree) TreeData {
	return t.trees.Get(tree)
}

func (t *Tables) InternFormatString(data FormatStringData) FormatString {
	data.Sections = slices.Clip(slices.Clone(data.Sections))
	return t.formatStrings.Intern(data.key(), data)
}

func (t *Tables) FormatStringData(fs FormatString) FormatStringData {
	return t.formatStrings.Get(fs)
}

// TreeCount reports how many distinct trees have been interned.
func (t *Tables) TreeCount() int {
	return t.trees.Len()
}

// keys are built only from handles and scalars; children are already interned,
// so the key of a tree never grows with its depth.
type keyBuilder struct {
	strings.Builder
	scratch [binary.MaxVarintLen64]byte
}

func (b *keyBuilder) uint(v uint64) {
	n := binary.PutUvarint(b.scratch[:], v)
	b.Write(b.scratch[:n])
}

func (d TreeData) key() string {
	var b keyBuilder
	b.uint(uint64(d.Filename))
	b.uint(uint64(d.Span.Start))
	b.uint(uint64(d.Span.End))
	for _, tok := range d.Tokens {
		b.uint(uint64(tok.Kind))
		switch tok.Kind {
		case KindDelimiter, KindOp, KindUnknown, KindWhitespace:
			b.uint(uint64(tok.Char))
		case KindAlphabetic, KindPrefix, KindNumber:
			b.uint(uint64(tok.Word))
		case KindComment:
			b.uint(uint64(tok.Len))
		case KindTree:
			b.uint(uint64(tok.Tree))
		case KindFormatString:
			b.uint(uint64(tok.FormatString))
		}
	}
	return b.String()
}

func (d FormatStringData) key() string {
	var b keyBuilder
	b.uint(uint64(d.Len))
	for _, s := range d.Sections {
		b.uint(uint64(s.Kind))
		switch s.Kind {
		case SectionText:
			b.uint(uint64(s.Text))
		case SectionTree:
			b.uint(uint64(s.Tree))
		}
	}
	return b.String()
}
