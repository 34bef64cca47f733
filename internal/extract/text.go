// Package extract turns raw HTML into plain text and outbound links.
// Malformed documents yield a sentinel value rather than failing the caller.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FailedText is returned by Text when the document cannot be parsed.
const FailedText = "Error extracting text"

// ErrExtraction wraps any parse failure reported by Text or Links.
var ErrExtraction = errors.New("extraction failed")

// strippedSelector lists elements whose contents are never visible text.
const strippedSelector = "script, style, noscript, iframe, frame, embed, object, svg"

// textTags are the block-level and inline elements text is collected from.
var textTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "div": true, "span": true,
}

// parse loads an HTML document, converting any reader failure into ErrExtraction.
func parse(raw string) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return doc, nil
}

// Text collects the visible text of an HTML document in document order.
// Each block element (p, h1-h6, li, div) yields its text as one fragment;
// a nested block splits its parent into fragments around it. Inline span
// text stays inside the enclosing fragment. Fragments are joined with
// single newlines and whitespace runs inside a fragment collapse to one
// space. A maxLength above zero truncates the result (counted in runes)
// and appends "...".
//
// On failure the returned text is FailedText and err wraps ErrExtraction.
func Text(raw string, maxLength int) (string, error) {
	doc, err := parse(raw)
	if err != nil {
		return FailedText, err
	}

	doc.Find(strippedSelector).Remove()

	var lines []string
	for _, n := range doc.Selection.Nodes {
		lines = collect(n, false, lines)
	}

	text := strings.Join(lines, "\n")
	return truncate(text, maxLength, "..."), nil
}

// collect walks the children of n in order. Inside a text element, text
// is buffered until a nested block interrupts it; outside one, only text
// elements found deeper in the tree contribute.
func collect(n *html.Node, inText bool, lines []string) []string {
	inside := inText || isTextElement(n)

	var buf strings.Builder
	flush := func() {
		if s := normalize(buf.String()); s != "" {
			lines = append(lines, s)
		}
		buf.Reset()
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case isBlock(c) || hasBlockDescendant(c):
			flush()
			lines = collect(c, inside, lines)
		case inside:
			buf.WriteString(nodeText(c))
		default:
			lines = collect(c, false, lines)
		}
	}
	flush()
	return lines
}

func isTextElement(n *html.Node) bool {
	return n.Type == html.ElementNode && textTags[n.Data]
}

// isBlock reports whether n is a text element that starts its own fragment.
func isBlock(n *html.Node) bool {
	return isTextElement(n) && n.Data != "span"
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) || hasBlockDescendant(c) {
			return true
		}
	}
	return false
}

// nodeText concatenates every text node under n.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// normalize collapses every whitespace run to a single space and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to max runes and appends marker. max <= 0 disables it.
func truncate(s string, max int, marker string) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + marker
}
