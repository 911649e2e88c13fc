package vfs

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/loomhq/workspace/internal/crdt"
)

// Mode is a timeline entry's content type.
type Mode string

const (
	ModeText     Mode = "text"
	ModeRichText Mode = "richtext"
	ModeBinary   Mode = "binary"
	ModeSheet    Mode = "sheet"
)

// sheetData is a minimal in-memory spreadsheet value: ordered column
// ids with display names, and per-row string cells keyed by column id.
type sheetData struct {
	columns   []string          // column ids, in display order
	colNames  map[string]string // column id -> display header
	rowOrder  []string          // row ids, in display order
	rows      map[string]map[string]string
}

type timelineEntry struct {
	mode        Mode
	text        *crdt.Text
	xml         *crdt.XMLFragment
	frontmatter map[string]any
	binary      []byte
	sheet       *sheetData
}

// Timeline is the append-only, mode-switching content history of one
// file's content doc.
type Timeline struct {
	doc   *crdt.Doc
	arr   *crdt.Array[*timelineEntry]
}

// NewTimeline opens the timeline array of a file's content doc.
func NewTimeline(doc *crdt.Doc) *Timeline {
	return &Timeline{doc: doc, arr: crdt.GetArray[*timelineEntry](doc, "timeline")}
}

func (tl *Timeline) last() *timelineEntry {
	all := tl.arr.All()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// CurrentMode returns the mode of the most recent entry, or "" if the
// timeline is empty.
func (tl *Timeline) CurrentMode() Mode {
	if e := tl.last(); e != nil {
		return e.mode
	}
	return ""
}

// Read returns the current content projected to a string: text
// verbatim, binary best-effort UTF-8 decoded, sheet as a CSV
// projection, richtext as "" (callers needing markup use
// ReadRichText).
func (tl *Timeline) Read() (string, error) {
	e := tl.last()
	if e == nil {
		return "", nil
	}
	switch e.mode {
	case ModeText:
		return e.text.String(), nil
	case ModeBinary:
		return string(e.binary), nil
	case ModeSheet:
		return sheetToCSV(e.sheet), nil
	case ModeRichText:
		return "", nil
	default:
		return "", nil
	}
}

// ReadRichText returns the raw serialized xml content and frontmatter
// of the current entry when it is in richtext mode.
func (tl *Timeline) ReadRichText() (string, map[string]any, error) {
	e := tl.last()
	if e == nil || e.mode != ModeRichText {
		return "", nil, nil
	}
	return e.xml.String(), e.frontmatter, nil
}

// ReadBuffer returns the current content as raw bytes.
func (tl *Timeline) ReadBuffer() ([]byte, error) {
	e := tl.last()
	if e == nil {
		return []byte{}, nil
	}
	switch e.mode {
	case ModeText:
		return []byte(e.text.String()), nil
	case ModeBinary:
		out := make([]byte, len(e.binary))
		copy(out, e.binary)
		return out, nil
	case ModeSheet:
		return []byte(sheetToCSV(e.sheet)), nil
	case ModeRichText:
		return []byte{}, nil
	default:
		return []byte{}, nil
	}
}

// Write replaces the current content with data (string or []byte). If
// the timeline is already in text mode and data is a string, the
// change is applied as an incremental edit to the existing Text rather
// than a full replace, mutating it in place instead of starting a new
// entry. Returns the new content's byte length.
func (tl *Timeline) Write(data any) (int64, error) {
	cur := tl.last()
	switch v := data.(type) {
	case string:
		if cur != nil && cur.mode == ModeText {
			incrementalEdit(cur.text, v)
			return int64(len(v)), nil
		}
		t := crdt.NewDetachedText(tl.doc)
		t.SetContent(v)
		tl.arr.Push(&timelineEntry{mode: ModeText, text: t})
		return int64(len(v)), nil
	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		tl.arr.Push(&timelineEntry{mode: ModeBinary, binary: buf})
		return int64(len(buf)), nil
	default:
		return 0, errNoSys("write: unsupported content type")
	}
}

// WriteRichText replaces the current content with a richtext entry.
func (tl *Timeline) WriteRichText(xmlContent string, frontmatter map[string]any) int64 {
	x := crdt.NewXMLFragment()
	x.SetString(xmlContent)
	tl.arr.Push(&timelineEntry{mode: ModeRichText, xml: x, frontmatter: frontmatter})
	return int64(len(xmlContent))
}

// WriteSheet replaces the current content with a sheet entry: header
// names its columns in display order, and rows holds one slice of
// cell values per row, aligned to header by index. Column and row ids
// are generated positionally since a freshly written sheet has no
// prior identity to preserve. Returns the new content's CSV-projected
// byte length, matching Write/WriteRichText's size-returning contract.
func (tl *Timeline) WriteSheet(header []string, rows [][]string) int64 {
	s := &sheetData{
		columns:  make([]string, len(header)),
		colNames: make(map[string]string, len(header)),
		rowOrder: make([]string, len(rows)),
		rows:     make(map[string]map[string]string, len(rows)),
	}
	for i, name := range header {
		col := fmt.Sprintf("c%d", i)
		s.columns[i] = col
		s.colNames[col] = name
	}
	for ri, vals := range rows {
		rid := fmt.Sprintf("r%d", ri)
		s.rowOrder[ri] = rid
		cells := make(map[string]string, len(s.columns))
		for i, col := range s.columns {
			if i < len(vals) {
				cells[col] = vals[i]
			}
		}
		s.rows[rid] = cells
	}
	tl.arr.Push(&timelineEntry{mode: ModeSheet, sheet: s})
	return int64(len(sheetToCSV(s)))
}

// Append extends the current content: appending a string
// to a text entry is an incremental Text.Append; appending a string to
// a binary entry decodes the existing bytes, concatenates, and starts
// a new text entry (a lossy but explicit mode switch); appending bytes
// to a text entry encodes the current text back to bytes first. An
// empty timeline returns ok=false so callers fall back to Write.
func (tl *Timeline) Append(data any) (size int64, ok bool) {
	cur := tl.last()
	if cur == nil {
		return 0, false
	}
	switch v := data.(type) {
	case string:
		switch cur.mode {
		case ModeText:
			cur.text.Append(v)
			return int64(len(cur.text.String())), true
		case ModeBinary:
			combined := string(cur.binary) + v
			t := crdt.NewDetachedText(tl.doc)
			t.SetContent(combined)
			tl.arr.Push(&timelineEntry{mode: ModeText, text: t})
			return int64(len(combined)), true
		default:
			return 0, false
		}
	case []byte:
		switch cur.mode {
		case ModeBinary:
			combined := append(append([]byte{}, cur.binary...), v...)
			tl.arr.Push(&timelineEntry{mode: ModeBinary, binary: combined})
			return int64(len(combined)), true
		case ModeText:
			combined := append([]byte(cur.text.String()), v...)
			tl.arr.Push(&timelineEntry{mode: ModeBinary, binary: combined})
			return int64(len(combined)), true
		default:
			return 0, false
		}
	}
	return 0, false
}

// incrementalEdit rewrites t's contents to newContent by deleting and
// inserting only the differing middle section, so an append-like edit
// to a large document doesn't discard the unchanged prefix/suffix.
func incrementalEdit(t *crdt.Text, newContent string) {
	old := t.String()
	oldR, newR := []rune(old), []rune(newContent)

	prefix := 0
	for prefix < len(oldR) && prefix < len(newR) && oldR[prefix] == newR[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldR)-prefix && suffix < len(newR)-prefix &&
		oldR[len(oldR)-1-suffix] == newR[len(newR)-1-suffix] {
		suffix++
	}

	delLen := len(oldR) - prefix - suffix
	if delLen > 0 {
		t.Delete(prefix, delLen)
	}
	mid := string(newR[prefix : len(newR)-suffix])
	if mid != "" {
		t.Insert(prefix, mid)
	}
}

func sheetToCSV(s *sheetData) string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(s.columns))
	for i, c := range s.columns {
		header[i] = s.colNames[c]
	}
	w.Write(header)

	for _, rid := range s.rowOrder {
		row := s.rows[rid]
		rec := make([]string, len(s.columns))
		for i, c := range s.columns {
			rec[i] = row[c]
		}
		w.Write(rec)
	}
	w.Flush()
	return buf.String()
}
