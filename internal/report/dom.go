package report

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// isElement reports whether n is an element with the given lowercase tag.
func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// nextElementSibling skips text and comment nodes.
func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// findAll returns every element with one of the given tags, in document order.
func findAll(root *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, t := range tags {
				if n.Data == t {
					out = append(out, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// findFirst returns the first descendant of n (excluding n) with the tag.
func findFirst(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tag) {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates all descendant text, like the DOM property.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// trimmedText is textContent with surrounding whitespace removed.
func trimmedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(textContent(n))
}

// innerHTML renders the children of n back to markup.
func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			break
		}
	}
	return buf.String()
}

// lineBreakTags separate logical lines inside a table cell.
var lineBreakTags = map[string]bool{"br": true, "div": true, "p": true, "li": true}

// cellLines returns the text of a cell split on <br> and block elements,
// each line trimmed, empty lines dropped. Entities are already decoded.
func cellLines(n *html.Node) []string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if lineBreakTags[n.Data] {
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	var lines []string
	for _, l := range strings.Split(sb.String(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// tableRows returns the rows owned by table, skipping rows of nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case isElement(c, "table"):
				continue
			case isElement(c, "tr"):
				rows = append(rows, c)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

// dataRows returns the table's rows without the leading header row.
func dataRows(table *html.Node) []*html.Node {
	rows := tableRows(table)
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

// cells returns the <td> children of a row; header cells are ignored.
func cells(row *html.Node) []*html.Node {
	var out []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "td") {
			out = append(out, c)
		}
	}
	return out
}

// cellText returns the trimmed text of cell i, "" when the row is shorter.
func cellText(cs []*html.Node, i int) string {
	if i >= len(cs) {
		return ""
	}
	return trimmedText(cs[i])
}
