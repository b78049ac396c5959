// Package intern provides content-addressed arenas that hand out small integer
// handles. Equal content always maps to the same handle, so handles can be
// compared directly instead of comparing what they point at.
package intern

import (
	"fmt"
	"sync"
)

// Table is a hash-consing arena from a content key to a value of type V.
// Handles start at 1; the zero handle is never issued.
//
// A Table is safe for concurrent use.
type Table[K ~uint32, V any] struct {
	mu     sync.RWMutex
	ids    map[string]K
	values []V
}

// Intern returns the handle previously issued for key, or stores value under a
// new handle.
func (t *Table[K, V]) Intern(key string, value V) K {
	t.mu.RLock()
	id, ok := t.ids[key]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// another writer may have won between the two locks
	if id, ok := t.ids[key]; ok {
		return id
	}

	if t.ids == nil {
		t.ids = make(map[string]K)
	}

	t.values = append(t.values, value)
	id = K(len(t.values))
	t.ids[key] = id
	return id
}

// Get resolves a handle issued by this table. Resolving any other handle is a
// programming error and panics.
func (t *Table[K, V]) Get(id K) V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id == 0 || int(id) > len(t.values) {
		panic(fmt.Sprintf("intern: handle %d was not issued by this table", id))
	}
	return t.values[id-1]
}

// Len reports how many distinct values have been interned.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// Word is an interned string.
type Word uint32

// Interner deduplicates strings into Words.
type Interner struct {
	words Table[Word, string]
}

func NewInterner() *Interner {
	return &Interner{}
}

// Intern returns the Word for text, allocating one on first sight.
func (i *Interner) Intern(text string) Word {
	return i.words.Intern(text, text)
}

// Text is the inverse of Intern.
func (i *Interner) Text(w Word) string {
	return i.words.Get(w)
}

// Len reports the number of distinct strings seen so far.
func (i *Interner) Len() int {
	return i.words.Len()
}
