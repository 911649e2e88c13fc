package crdt

import "sync"

// Text is a shared mutable string, the content type of a timeline
// entry in text mode. Writes mutate in place, matching the
// "incremental edit" semantics write()/append() require when the
// current mode is already text.
type Text struct {
	mu   sync.Mutex
	doc  *Doc
	name string
	buf  []rune
}

// GetText returns the named shared text, creating it empty on first use.
func GetText(d *Doc, name string) *Text {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[name]; ok {
		return t
	}
	t := &Text{doc: d, name: name}
	d.texts[name] = t
	return t
}

// NewDetachedText allocates a Text not registered under a name — used
// for each new timeline entry, since a file's timeline holds many
// independent Text values over its lifetime, not one per file.
func NewDetachedText(d *Doc) *Text {
	return &Text{doc: d}
}

// String returns the current contents.
func (t *Text) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Insert inserts s at rune offset at.
func (t *Text) Insert(at int, s string) {
	t.mu.Lock()
	r := []rune(s)
	if at < 0 {
		at = 0
	}
	if at > len(t.buf) {
		at = len(t.buf)
	}
	out := make([]rune, 0, len(t.buf)+len(r))
	out = append(out, t.buf[:at]...)
	out = append(out, r...)
	out = append(out, t.buf[at:]...)
	t.buf = out
	t.mu.Unlock()
	if t.doc != nil {
		t.doc.markTouched(t.name)
	}
}

// Append appends s to the end, the common case for timeline appends.
func (t *Text) Append(s string) {
	t.mu.Lock()
	length := len(t.buf)
	t.mu.Unlock()
	t.Insert(length, s)
}

// Delete removes length runes starting at offset at.
func (t *Text) Delete(at, length int) {
	t.mu.Lock()
	if at < 0 || at >= len(t.buf) || length <= 0 {
		t.mu.Unlock()
		return
	}
	end := at + length
	if end > len(t.buf) {
		end = len(t.buf)
	}
	t.buf = append(t.buf[:at], t.buf[end:]...)
	t.mu.Unlock()
	t.doc.markTouched(t.name)
}

// SetContent replaces the entire contents.
func (t *Text) SetContent(s string) {
	t.mu.Lock()
	t.buf = []rune(s)
	t.mu.Unlock()
	if t.doc != nil {
		t.doc.markTouched(t.name)
	}
}

// Len returns the rune length.
func (t *Text) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}
