// Package resolver maps natural keys (gene names, refseq accessions,
// kinase names, ...) to the single in-memory entity standing for them
// during an import run.
package resolver

// Index is a keyed set of entities remembering insertion order, so that
// entities created during a run get their ids in the order they were met.
type Index[K comparable, T any] struct {
	items  map[K]T
	order  []K
	loaded bool
}

// NewIndex creates an empty index.
func NewIndex[K comparable, T any]() *Index[K, T] {
	return &Index[K, T]{items: make(map[K]T)}
}

// Get returns the entity stored under key.
func (ix *Index[K, T]) Get(key K) (T, bool) {
	v, ok := ix.items[key]
	return v, ok
}

// GetOrCreate returns the entity stored under key. On a miss create is
// called once, its result stored and returned with created set to true.
func (ix *Index[K, T]) GetOrCreate(key K, create func() T) (entity T, created bool) {
	if v, ok := ix.items[key]; ok {
		return v, false
	}
	v := create()
	ix.Put(key, v)
	return v, true
}

// Put stores v under key, replacing any previous entity.
func (ix *Index[K, T]) Put(key K, v T) {
	if _, ok := ix.items[key]; !ok {
		ix.order = append(ix.order, key)
	}
	ix.items[key] = v
}

// Delete forgets the entity stored under key.
func (ix *Index[K, T]) Delete(key K) {
	if _, ok := ix.items[key]; !ok {
		return
	}
	delete(ix.items, key)
	for i, k := range ix.order {
		if k == key {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entities.
func (ix *Index[K, T]) Len() int {
	return len(ix.items)
}

// Values returns the entities in insertion order.
func (ix *Index[K, T]) Values() []T {
	values := make([]T, 0, len(ix.order))
	for _, k := range ix.order {
		values = append(values, ix.items[k])
	}
	return values
}

// Reset empties the index and marks it as not loaded.
func (ix *Index[K, T]) Reset() {
	ix.items = make(map[K]T)
	ix.order = nil
	ix.loaded = false
}

// Loaded reports whether the index mirrors the store.
func (ix *Index[K, T]) Loaded() bool {
	return ix.loaded
}
