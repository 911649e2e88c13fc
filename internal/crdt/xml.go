package crdt

import "sync"

// XMLFragment is a simplified stand-in for the substrate's rich-text
// node tree: it stores a serialized representation (the host engine
// would instead offer structured node/attribute access). A richtext
// timeline entry keeps its frontmatter map beside the fragment, not in
// it.
type XMLFragment struct {
	mu      sync.Mutex
	content string
}

// NewXMLFragment allocates a detached xml-fragment value, one per
// richtext timeline entry.
func NewXMLFragment() *XMLFragment { return &XMLFragment{} }

// String returns the serialized contents.
func (x *XMLFragment) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.content
}

// SetString replaces the serialized contents.
func (x *XMLFragment) SetString(s string) {
	x.mu.Lock()
	x.content = s
	x.mu.Unlock()
}
