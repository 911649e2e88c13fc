package vfs

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/loomhq/workspace/internal/crdt"
)

// Provider is a content-doc collaborator attached by a content-doc
// factory (e.g. a persistence or sync extension) — analogous to a Yjs
// provider attached to a sub-document.
type Provider interface {
	// WhenReady blocks until the provider has finished its initial
	// sync/load for doc, or ctx is cancelled.
	WhenReady(ctx context.Context) error
	// Destroy releases the provider's resources.
	Destroy(ctx context.Context) error
}

// ProviderFactory constructs a Provider bound to fileID's content doc.
type ProviderFactory func(fileID string, doc *crdt.Doc) Provider

type docEntry struct {
	doc       *crdt.Doc
	providers []Provider
}

// ContentDocStore lazily creates and pools per-file content docs: each
// file's content lives in its own CRDT document, acquired on first
// access and released on Destroy.
type ContentDocStore struct {
	factories []ProviderFactory

	mu   sync.Mutex
	docs map[string]*docEntry
	sf   singleflight.Group
}

// NewContentDocStore builds an empty pool. factories run against every
// newly-created content doc, in order.
func NewContentDocStore(factories ...ProviderFactory) *ContentDocStore {
	return &ContentDocStore{factories: factories, docs: make(map[string]*docEntry)}
}

// Ensure returns fileID's content doc, creating it (and running its
// providers' initial sync) on first access. Concurrent calls for the
// same fileID are deduplicated onto a single construction.
func (s *ContentDocStore) Ensure(ctx context.Context, fileID string) (*crdt.Doc, error) {
	v, err, _ := s.sf.Do(fileID, func() (any, error) {
		s.mu.Lock()
		if e, ok := s.docs[fileID]; ok {
			s.mu.Unlock()
			return e.doc, nil
		}
		doc := crdt.NewDoc(fileID)
		providers := make([]Provider, 0, len(s.factories))
		for _, f := range s.factories {
			providers = append(providers, f(fileID, doc))
		}
		entry := &docEntry{doc: doc, providers: providers}
		s.docs[fileID] = entry
		s.mu.Unlock()

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range providers {
			p := p
			g.Go(func() error { return p.WhenReady(gctx) })
		}
		if err := g.Wait(); err != nil {
			return doc, err
		}
		return doc, nil
	})
	if v == nil {
		return nil, err
	}
	return v.(*crdt.Doc), err
}

// Peek returns fileID's content doc if already pooled, without
// triggering construction.
func (s *ContentDocStore) Peek(fileID string) (*crdt.Doc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[fileID]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Destroy tears down fileID's providers (in reverse registration order)
// and disposes its content doc. A no-op if fileID was never ensured.
func (s *ContentDocStore) Destroy(ctx context.Context, fileID string) error {
	s.mu.Lock()
	e, ok := s.docs[fileID]
	if ok {
		delete(s.docs, fileID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	var firstErr error
	for i := len(e.providers) - 1; i >= 0; i-- {
		if err := e.providers[i].Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.doc.Destroy()
	return firstErr
}

// DestroyAll tears down every pooled content doc.
func (s *ContentDocStore) DestroyAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.Destroy(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
