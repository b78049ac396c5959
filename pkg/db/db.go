// Package db is the incremental database behind the lexer.
//
// The text of each file is the only mutable state. Everything else (token
// trees, diagnostics, items) is computed on demand and memoized. A memo is
// reused as long as the stamps of everything it read still hold, and a
// recomputed value equal to the previous one keeps its old stamp, so queries
// that depend on it are not re-run.
//
// Every UpdateFile produces a new immutable view of the inputs. Snapshots
// hold on to the view that was current when they were taken and can be
// queried from other goroutines while the database keeps changing.
package db

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/parse"
	"github.com/walteh/lexdb/pkg/position"
	"github.com/walteh/lexdb/pkg/token"
)

type Database struct {
	id  uuid.UUID
	log zerolog.Logger
	st  *storage

	mu      sync.RWMutex
	current atomic.Pointer[view]
}

type Option func(*Database)

// WithParser replaces the default ItemParser.
func WithParser(p parse.Parser) Option {
	return func(d *Database) {
		d.st.parser = p
	}
}

// WithEventHook registers fn to receive every query event. fn is called from
// whichever goroutine runs the query, snapshots included.
func WithEventHook(fn func(Event)) Option {
	return func(d *Database) {
		d.st.hook = fn
	}
}

// New creates an empty database. The logger is taken from ctx.
func New(ctx context.Context, opts ...Option) *Database {
	id := uuid.New()
	d := &Database{
		id:  id,
		log: zerolog.Ctx(ctx).With().Str("db", id.String()).Logger(),
		st: &storage{
			tables: token.NewTables(),
			parser: parse.NewItemParser(),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.current.Store(&view{inputs: map[intern.Word]input{}})
	return d
}

func (d *Database) ID() uuid.UUID {
	return d.id
}

// Interner gives access to the interned words, trees and format strings.
func (d *Database) Interner() token.Interner {
	return d.st.tables
}

// Filename interns name for use as a file key.
func (d *Database) Filename(name string) intern.Word {
	return d.st.tables.Intern(name)
}

func (d *Database) Text(w intern.Word) string {
	return d.st.tables.Text(w)
}

// Revision counts the changes made with UpdateFile.
func (d *Database) Revision() uint64 {
	return d.current.Load().rev
}

// UpdateFile sets the text of filename. Setting the same text again is a
// no-op.
func (d *Database) UpdateFile(filename intern.Word, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.current.Load()
	if prev, ok := old.inputs[filename]; ok && prev.text == text {
		return
	}

	inputs := maps.Clone(old.inputs)
	inputs[filename] = input{text: text, stamp: d.st.nextStamp()}

	rev := d.st.revision.Add(1)
	d.current.Store(&view{rev: rev, inputs: inputs})

	d.log.Debug().
		Str("file", d.Text(filename)).
		Int("bytes", len(text)).
		Uint64("revision", rev).
		Int("trees", d.st.tables.TreeCount()).
		Msg("updated file")
}

func (d *Database) runtime() *runtime {
	return &runtime{st: d.st, view: d.current.Load(), log: &d.log}
}

// SourceText returns the current text of filename, or "" if it was never set.
func (d *Database) SourceText(filename intern.Word) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runtime().sourceText(filename)
}

// LexFile returns the token tree of the whole file.
func (d *Database) LexFile(filename intern.Word) token.TokenTree {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runtime().lexFile(filename).tree
}

// LexSpan returns the token tree of part of a file. Offsets in the tree are
// file offsets.
func (d *Database) LexSpan(span position.FileSpan) token.TokenTree {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runtime().lexSpan(span).tree
}

// Diagnostics returns the lexer diagnostics of filename followed by those of
// the parser.
func (d *Database) Diagnostics(filename intern.Word) []diagnostic.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runtime().diagnostics(filename)
}

func (d *Database) Items(filename intern.Word) []parse.Item {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.runtime().parseFile(filename).items)
}

// FunctionBody lexes the body of item on its own. Unchanged bodies give the
// same tree handle as the body tree inside LexFile.
func (d *Database) FunctionBody(item parse.Item) token.TokenTree {
	return d.LexSpan(item.Body)
}

// Snapshot returns a read-only view of the database as it is now.
func (d *Database) Snapshot() *Snapshot {
	id := xid.New()
	v := d.current.Load()
	log := d.log.With().Str("snapshot", id.String()).Uint64("revision", v.rev).Logger()
	return &Snapshot{
		id: id,
		rt: &runtime{st: d.st, view: v, log: &log},
	}
}

// Snapshot answers queries against the state of the database at the time it
// was taken. It never blocks UpdateFile and is safe for concurrent use.
type Snapshot struct {
	id xid.ID
	rt *runtime
}

func (s *Snapshot) ID() xid.ID {
	return s.id
}

func (s *Snapshot) Revision() uint64 {
	return s.rt.view.rev
}

func (s *Snapshot) Interner() token.Interner {
	return s.rt.st.tables
}

func (s *Snapshot) Text(w intern.Word) string {
	return s.rt.st.tables.Text(w)
}

func (s *Snapshot) SourceText(filename intern.Word) string {
	return s.rt.sourceText(filename)
}

func (s *Snapshot) LexFile(filename intern.Word) token.TokenTree {
	return s.rt.lexFile(filename).tree
}

func (s *Snapshot) LexSpan(span position.FileSpan) token.TokenTree {
	return s.rt.lexSpan(span).tree
}

func (s *Snapshot) Diagnostics(filename intern.Word) []diagnostic.Diagnostic {
	return s.rt.diagnostics(filename)
}

func (s *Snapshot) Items(filename intern.Word) []parse.Item {
	return slices.Clone(s.rt.parseFile(filename).items)
}

func (s *Snapshot) FunctionBody(item parse.Item) token.TokenTree {
	return s.LexSpan(item.Body)
}
