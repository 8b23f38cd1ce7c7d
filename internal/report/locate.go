package report

import (
	"strings"

	"golang.org/x/net/html"
)

// FindTable locates the data table belonging to the first headingTag
// element whose text contains fragment. Tables are searched among the
// heading's following siblings first, then among the following siblings of
// each ancestor up to the document root. Nil means the section is absent.
func FindTable(doc *html.Node, headingTag, fragment string) *html.Node {
	heading := findHeading(doc, headingTag, func(text string) bool {
		return strings.Contains(text, fragment)
	})
	if heading == nil {
		return nil
	}

	if table := FindTableAdjacentTo(heading); table != nil {
		return table
	}
	for parent := heading.Parent; parent != nil; parent = parent.Parent {
		if table := FindTableAdjacentTo(parent); table != nil {
			return table
		}
	}
	return nil
}

// FindTableAdjacentTo scans the element siblings after el and returns the
// first one that is a table or contains one.
func FindTableAdjacentTo(el *html.Node) *html.Node {
	if el == nil {
		return nil
	}
	for s := nextElementSibling(el); s != nil; s = nextElementSibling(s) {
		if isElement(s, "table") {
			return s
		}
		if table := findFirst(s, "table"); table != nil {
			return table
		}
	}
	return nil
}

// FindHeading returns the first headingTag element whose trimmed text equals text.
func FindHeading(doc *html.Node, headingTag, text string) *html.Node {
	return findHeading(doc, headingTag, func(t string) bool { return t == text })
}

func findHeading(doc *html.Node, tag string, match func(string) bool) *html.Node {
	for _, h := range findAll(doc, tag) {
		if match(trimmedText(h)) {
			return h
		}
	}
	return nil
}

// KeyValues is an insertion-ordered string map read from a two-column table.
type KeyValues struct {
	keys   []string
	values map[string]string
}

func newKeyValues() *KeyValues {
	return &KeyValues{values: make(map[string]string)}
}

// Set stores value under key; a duplicate key keeps its first position but
// takes the newest value.
func (kv *KeyValues) Set(key, value string) {
	if _, ok := kv.values[key]; !ok {
		kv.keys = append(kv.keys, key)
	}
	kv.values[key] = value
}

// Lookup returns the value for key and whether it was present.
func (kv *KeyValues) Lookup(key string) (string, bool) {
	v, ok := kv.values[key]
	return v, ok
}

// Get returns the value for key, or def when missing or empty.
func (kv *KeyValues) Get(key, def string) string {
	if v, ok := kv.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Keys returns keys in first-seen order.
func (kv *KeyValues) Keys() []string {
	return append([]string(nil), kv.keys...)
}

func (kv *KeyValues) Len() int { return len(kv.keys) }

// Each calls fn for every entry in order.
func (kv *KeyValues) Each(fn func(key, value string)) {
	for _, k := range kv.keys {
		fn(k, kv.values[k])
	}
}

// ReadKeyValueTable reads every row with at least two cells as key/value.
// The value is the trimmed cell text, or the cell's inner markup when the
// text is empty. Later duplicates overwrite earlier ones.
func ReadKeyValueTable(table *html.Node) *KeyValues {
	kv := newKeyValues()
	if table == nil {
		return kv
	}
	for _, row := range tableRows(table) {
		cs := cells(row)
		if len(cs) < 2 {
			continue
		}
		key := trimmedText(cs[0])
		if key == "" {
			continue
		}
		value := trimmedText(cs[1])
		if value == "" {
			value = innerHTML(cs[1])
		}
		kv.Set(key, value)
	}
	return kv
}
