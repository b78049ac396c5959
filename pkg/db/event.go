package db

import (
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/position"
)

// QueryKind names a memoized computation.
type QueryKind uint8

const (
	QuerySourceText QueryKind = iota + 1
	QueryLexFile
	QueryLexSpan
	QueryParseFile
)

func (k QueryKind) String() string {
	switch k {
	case QuerySourceText:
		return "SourceText"
	case QueryLexFile:
		return "LexFile"
	case QueryLexSpan:
		return "LexSpan"
	case QueryParseFile:
		return "ParseFile"
	}
	return "Invalid"
}

type EventKind uint8

const (
	// WillExecute is sent right before a query body runs.
	WillExecute EventKind = iota + 1
	// DidValidateMemoizedValue is sent when a memo from an earlier revision
	// is reused because none of its inputs changed.
	DidValidateMemoizedValue
)

func (k EventKind) String() string {
	switch k {
	case WillExecute:
		return "WillExecute"
	case DidValidateMemoizedValue:
		return "DidValidateMemoizedValue"
	}
	return "Invalid"
}

// Event describes what the database did to answer a query. Span is only set
// for LexSpan.
type Event struct {
	Kind     EventKind
	Query    QueryKind
	Filename intern.Word
	Span     position.Span
}
