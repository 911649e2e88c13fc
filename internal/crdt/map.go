package crdt

import "sync"

// Map is a shared key/value map, one per (doc, name) pair.
type Map[V any] struct {
	mu   sync.Mutex
	doc  *Doc
	name string
	m    map[string]V
}

// GetMap returns the named shared map, creating it on first use. All
// callers for a given (doc, name) pair must agree on V.
func GetMap[V any](d *Doc, name string) *Map[V] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.maps[name]; ok {
		return existing.(*Map[V])
	}
	mp := &Map[V]{doc: d, name: name, m: make(map[string]V)}
	d.maps[name] = mp
	return mp
}

// Set writes key to v.
func (mp *Map[V]) Set(key string, v V) {
	mp.mu.Lock()
	mp.m[key] = v
	mp.mu.Unlock()
	mp.doc.markTouched(mp.name)
}

// Get returns the value at key and whether it was present.
func (mp *Map[V]) Get(key string) (V, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	v, ok := mp.m[key]
	return v, ok
}

// Delete removes key.
func (mp *Map[V]) Delete(key string) {
	mp.mu.Lock()
	_, ok := mp.m[key]
	if ok {
		delete(mp.m, key)
	}
	mp.mu.Unlock()
	if ok {
		mp.doc.markTouched(mp.name)
	}
}

// Keys returns all present keys in unspecified order.
func (mp *Map[V]) Keys() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([]string, 0, len(mp.m))
	for k := range mp.m {
		out = append(out, k)
	}
	return out
}

// Len returns the number of entries.
func (mp *Map[V]) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.m)
}

// Snapshot returns a shallow copy of the backing map.
func (mp *Map[V]) Snapshot() map[string]V {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make(map[string]V, len(mp.m))
	for k, v := range mp.m {
		out[k] = v
	}
	return out
}
