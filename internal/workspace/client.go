// Package workspace implements the workspace client composition and
// lifecycle model: a single document bundling the dynamic-workspace
// substores, a builder for attaching extensions and bound actions, and
// an ordered ready/destroy lifecycle.
package workspace

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/dynamic"
)

// Definition names a workspace instance: its id and the document GUID
// its CRDT substrate should use.
type Definition struct {
	ID  string
	Doc string // CRDT doc GUID; defaults to ID when empty
}

// Extension is a workspace collaborator attached via WithExtension: a
// persistence layer, a sync relay, a metrics recorder, and so on. Key
// identifies it for lookup via Client.Extension.
type Extension interface {
	Key() string
	// WhenReady blocks until the extension's initial setup (e.g. load
	// from disk, initial sync) has completed, or ctx is cancelled.
	WhenReady(ctx context.Context) error
	// Destroy releases the extension's resources.
	Destroy(ctx context.Context) error
}

// ExtensionFactory constructs an Extension bound to a client.
type ExtensionFactory func(c *Client) Extension

// ActionsFactory builds the bound-actions value exposed by
// Client.Actions, typically a struct of closures capturing *Workspace.
type ActionsFactory func(ws *dynamic.Workspace) any

// state is the client's lifecycle state.
type state int

const (
	stateBuilding state = iota
	stateReady
	stateDestroyed
)

// Client is a built workspace: its CRDT doc, the dynamic-workspace
// substores over it, any attached extensions, and bound actions.
type Client struct {
	def Definition
	doc *crdt.Doc
	ws  *dynamic.Workspace

	extFactories []ExtensionFactory
	extensions   []Extension
	extByKey     map[string]Extension

	actionsFactory ActionsFactory
	actions        any

	state state
}

// New begins building a workspace client for def. Call WithExtension/
// WithActions to configure it, then Build to finish.
func New(def Definition) *Client {
	guid := def.Doc
	if guid == "" {
		guid = def.ID
	}
	doc := crdt.NewDoc(guid)
	return &Client{
		def:      def,
		doc:      doc,
		ws:       dynamic.NewWorkspace(doc),
		extByKey: make(map[string]Extension),
	}
}

// WithExtension registers an extension factory, applied in
// registration order when Build runs. Panics on a duplicate key once
// built — extension keys must be unique.
func (c *Client) WithExtension(factory ExtensionFactory) *Client {
	c.extFactories = append(c.extFactories, factory)
	return c
}

// WithActions registers the bound-actions factory.
func (c *Client) WithActions(factory ActionsFactory) *Client {
	c.actionsFactory = factory
	return c
}

// Build instantiates every registered extension (in registration
// order) and the actions value. It does not block on readiness — call
// WhenReady for that.
func (c *Client) Build() *Client {
	for _, f := range c.extFactories {
		ext := f(c)
		if _, dup := c.extByKey[ext.Key()]; dup {
			panic(fmt.Sprintf("workspace: duplicate extension key %q", ext.Key()))
		}
		c.extByKey[ext.Key()] = ext
		c.extensions = append(c.extensions, ext)
	}
	if c.actionsFactory != nil {
		c.actions = c.actionsFactory(c.ws)
	}
	return c
}

// Workspace returns the dynamic-workspace substores.
func (c *Client) Workspace() *dynamic.Workspace { return c.ws }

// Doc returns the backing CRDT document.
func (c *Client) Doc() *crdt.Doc { return c.doc }

// ID returns the workspace's definition id.
func (c *Client) ID() string { return c.def.ID }

// Actions returns the bound-actions value built by WithActions's
// factory (nil if none was registered).
func (c *Client) Actions() any { return c.actions }

// Extension looks up an attached extension by key.
func (c *Client) Extension(key string) (Extension, bool) {
	e, ok := c.extByKey[key]
	return e, ok
}

// WhenReady waits for every extension's WhenReady to settle, fanned
// out concurrently — the client becomes "ready" only once every
// attached extension is. The first extension error cancels the rest
// via the shared context.
func (c *Client) WhenReady(ctx context.Context) error {
	if c.state == stateDestroyed {
		return fmt.Errorf("workspace: client %q already destroyed", c.def.ID)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, ext := range c.extensions {
		ext := ext
		g.Go(func() error { return ext.WhenReady(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.state = stateReady
	return nil
}

// Destroy tears down extensions in reverse registration order, then
// disposes the CRDT document. Safe to call more than once.
func (c *Client) Destroy(ctx context.Context) error {
	if c.state == stateDestroyed {
		return nil
	}
	var firstErr error
	for i := len(c.extensions) - 1; i >= 0; i-- {
		if err := c.extensions[i].Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.doc.Destroy()
	c.state = stateDestroyed
	return firstErr
}

// Destroyed reports whether Destroy has run.
func (c *Client) Destroyed() bool { return c.state == stateDestroyed }
