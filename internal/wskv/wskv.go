// Package wskv implements the workspace-wide KV helper: a fixed set of
// declared keys, each independently schema validated, backed by the
// same LWW KV log primitive as the table helper.
package wskv

import (
	"errors"
	"fmt"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/schema"
)

// ErrUnknownKey is returned when a caller references a key not
// declared in the Definition.
var ErrUnknownKey = errors.New("wskv: unknown key")

// ErrInvalid is returned when a value fails its declared field's
// validation.
var ErrInvalid = errors.New("wskv: value failed validation")

// Definition declares the fixed set of keys a workspace's KV area
// exposes, each with its own field spec.
type Definition map[string]schema.FieldSpec

// Store is a workspace-wide typed key/value area.
type Store struct {
	def Definition
	log *kv.Log
}

// New opens (or creates) the KV store named name over doc.
func New(doc *crdt.Doc, name string, def Definition) *Store {
	return &Store{def: def, log: kv.New(doc, "kv:"+name)}
}

// Get returns the value at key, or (nil, false) if unset.
func (s *Store) Get(key string) (any, bool) {
	return s.log.Get(key)
}

// Set validates v against key's declared field spec and writes it.
func (s *Store) Set(key string, v any) error {
	spec, ok := s.def[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if v == nil {
		if spec.Required && !spec.Nullable {
			return fmt.Errorf("%w: %s: required field is missing", ErrInvalid, key)
		}
	} else if msg := schema.ValidateValue(spec, v); msg != "" {
		return fmt.Errorf("%w: %s: %s", ErrInvalid, key, msg)
	}
	s.log.Set(key, v)
	return nil
}

// Delete clears key.
func (s *Store) Delete(key string) error {
	if _, ok := s.def[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	s.log.Delete(key)
	return nil
}

// Entries returns all currently-set (key, value) pairs as a map, so
// without any order.
func (s *Store) Entries() map[string]any {
	out := make(map[string]any)
	for _, e := range s.log.Entries() {
		out[e.Key] = e.Val
	}
	return out
}

// Batch wraps fn so that any number of Set/Delete calls it performs
// commit as one substrate transaction.
func (s *Store) Batch(fn func(st *Store)) {
	s.log.Doc().Transact("local", func(tx *crdt.Tx) {
		fn(s)
	})
}

// Observe registers a handler invoked once per commit with one Delta
// per key touched.
func (s *Store) Observe(fn func([]kv.Delta)) (unobserve func()) {
	return s.log.Observe(fn)
}
