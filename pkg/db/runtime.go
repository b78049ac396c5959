package db

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/parse"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

// stamp identifies one value of a query. Inputs get a fresh stamp whenever
// their text changes; derived queries get a fresh stamp whenever they compute
// a value different from their previous memo.
type stamp uint64

type key struct {
	query    QueryKind
	filename intern.Word
	span     position.Span
}

type dep struct {
	key   key
	stamp stamp
}

// memo is an immutable computed value and the stamps of everything read to
// compute it. It is valid in any view where all those stamps still hold.
type memo struct {
	value any
	stamp stamp
	deps  []dep
}

type input struct {
	text  string
	stamp stamp
}

// view is the database at one revision. inputs is never modified after the
// view is created.
type view struct {
	rev      uint64
	inputs   map[intern.Word]input
	verified sync.Map // map[key]*memo
}

// storage is shared by a database and all of its snapshots.
type storage struct {
	tables   *token.Tables
	parser   parse.Parser
	hook     func(Event)
	memos    sync.Map // map[key]*memo
	revision atomic.Uint64
	stamps   atomic.Uint64
}

func (s *storage) nextStamp() stamp {
	return stamp(s.stamps.Add(1))
}

// runtime answers queries against a single view.
type runtime struct {
	st   *storage
	view *view
	log  *zerolog.Logger
}

// frame collects the dependencies of the query body currently executing.
type frame struct {
	deps []dep
}

// fetch returns the value of k, recording it as a dependency of parent.
func (r *runtime) fetch(k key, parent *frame) any {
	m := r.memo(k)
	if parent != nil {
		parent.deps = append(parent.deps, dep{key: k, stamp: m.stamp})
	}
	return m.value
}

func (r *runtime) memo(k key) *memo {
	if k.query == QuerySourceText {
		in := r.view.inputs[k.filename]
		return &memo{value: in.text, stamp: in.stamp}
	}

	if m, ok := r.view.verified.Load(k); ok {
		return m.(*memo)
	}

	var old *memo
	if m, ok := r.st.memos.Load(k); ok {
		old = m.(*memo)
		if r.valid(old) {
			r.emit(DidValidateMemoizedValue, k)
			m, _ := r.view.verified.LoadOrStore(k, old)
			return m.(*memo)
		}
	}

	r.emit(WillExecute, k)
	f := &frame{}
	value := r.execute(k, f)

	m := &memo{value: value, stamp: r.st.nextStamp(), deps: f.deps}
	if old != nil && sameValue(old.value, value) {
		m.stamp = old.stamp
	}

	actual, _ := r.view.verified.LoadOrStore(k, m)
	if r.view.rev == r.st.revision.Load() {
		r.st.memos.Store(k, actual)
	}
	return actual.(*memo)
}

// valid reports whether every dependency of m still has the stamp m saw.
// Derived dependencies are brought up to date first, which may execute them.
func (r *runtime) valid(m *memo) bool {
	for _, d := range m.deps {
		if r.memo(d.key).stamp != d.stamp {
			return false
		}
	}
	return true
}

func (r *runtime) emit(kind EventKind, k key) {
	ev := Event{Kind: kind, Query: k.query, Filename: k.filename, Span: k.span}

	r.log.Debug().
		Stringer("event", kind).
		Stringer("query", k.query).
		Str("file", r.st.tables.Text(k.filename)).
		Uint64("revision", r.view.rev).
		Msg("query event")

	if r.st.hook != nil {
		r.st.hook(ev)
	}
}

func (r *runtime) execute(k key, f *frame) any {
	switch k.query {
	case QueryLexFile:
		return r.executeLexFile(k.filename, f)
	case QueryLexSpan:
		return r.executeLexSpan(k.span.In(k.filename), f)
	case QueryParseFile:
		return r.executeParseFile(k.filename, f)
	}
	panic("db: no body for query " + k.query.String())
}

type lexResult struct {
	tree  token.TokenTree
	diags []diagnostic.Diagnostic
}

type parseResult struct {
	items []parse.Item
	diags []diagnostic.Diagnostic
}

func sameValue(a, b any) bool {
	switch a := a.(type) {
	case lexResult:
		b, ok := b.(lexResult)
		return ok && a.tree == b.tree && slices.Equal(a.diags, b.diags)
	case parseResult:
		b, ok := b.(parseResult)
		return ok && slices.Equal(a.items, b.items) && slices.Equal(a.diags, b.diags)
	}
	return false
}
