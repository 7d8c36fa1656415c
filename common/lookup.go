package common

// Lookup is an insertion-ordered collection whose items can be addressed either by key or by index.
// Removing an item shifts every later item down by one and keeps the key index consistent.
// The zero value is not usable; create one with NewLookup.
type Lookup[T any] struct {
	keys  []string
	items []T
	index map[string]int
}

// NewLookup creates an empty Lookup.
//
// Returns:
//   - *Lookup[T]: the new collection
func NewLookup[T any]() *Lookup[T] {
	return &Lookup[T]{
		keys:  make([]string, 0),
		items: make([]T, 0),
		index: make(map[string]int),
	}
}

// Add appends an item under the given key.
// Returns false without modifying the collection if the key is already present.
//
// Parameters:
//   - key: the unique key of the item
//   - item: the item to append
//
// Returns:
//   - bool: true if the item was added
func (l *Lookup[T]) Add(key string, item T) bool {
	if _, ok := l.index[key]; ok {
		return false
	}
	l.keys = append(l.keys, key)
	l.items = append(l.items, item)
	l.index[key] = len(l.items) - 1
	return true
}

// Get returns the item stored under key.
//
// Parameters:
//   - key: the key to look up
//
// Returns:
//   - T: the item, or the zero value when missing
//   - bool: true if the key was found
func (l *Lookup[T]) Get(key string) (T, bool) {
	i, ok := l.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// At returns the item at insertion index i.
//
// Parameters:
//   - i: the index to read
//
// Returns:
//   - T: the item, or the zero value when out of range
//   - bool: true if i was in range
func (l *Lookup[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// IndexOf returns the insertion index of key, or -1 if the key is not present.
func (l *Lookup[T]) IndexOf(key string) int {
	if i, ok := l.index[key]; ok {
		return i
	}
	return -1
}

// KeyAt returns the key at insertion index i, or "" when out of range.
func (l *Lookup[T]) KeyAt(i int) string {
	if i < 0 || i >= len(l.keys) {
		return ""
	}
	return l.keys[i]
}

// Has reports whether key is present.
func (l *Lookup[T]) Has(key string) bool {
	_, ok := l.index[key]
	return ok
}

// Set replaces the item stored under an existing key.
// Returns false if the key is not present.
func (l *Lookup[T]) Set(key string, item T) bool {
	i, ok := l.index[key]
	if !ok {
		return false
	}
	l.items[i] = item
	return true
}

// Remove deletes the item stored under key and returns it.
//
// Parameters:
//   - key: the key to remove
//
// Returns:
//   - T: the removed item, or the zero value when missing
//   - bool: true if an item was removed
func (l *Lookup[T]) Remove(key string) (T, bool) {
	i, ok := l.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return l.RemoveAt(i)
}

// RemoveAt deletes the item at insertion index i and returns it.
func (l *Lookup[T]) RemoveAt(i int) (T, bool) {
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, false
	}
	item := l.items[i]
	delete(l.index, l.keys[i])
	l.keys = append(l.keys[:i], l.keys[i+1:]...)
	l.items = append(l.items[:i], l.items[i+1:]...)
	for j := i; j < len(l.keys); j++ {
		l.index[l.keys[j]] = j
	}
	return item, true
}

// Clear removes every item.
func (l *Lookup[T]) Clear() {
	l.keys = l.keys[:0]
	l.items = l.items[:0]
	clear(l.index)
}

// Len returns the number of items.
func (l *Lookup[T]) Len() int {
	return len(l.items)
}

// Keys returns a copy of the keys in insertion order.
func (l *Lookup[T]) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// Items returns a copy of the items in insertion order.
func (l *Lookup[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}
