// Package htmltext turns HTML (or plain text) into a single line of
// searchable text.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements whose content is never visible text.
const hiddenSelector = "script, style, noscript, template"

// Clean returns the visible text of content. Every text node is trimmed,
// empty ones are dropped, and the rest are joined with a single space.
// Content without markup is treated as a single text node.
// Bytes that are not valid UTF-8 are dropped.
func Clean(content string) string {
	content = strings.ToValidUTF8(content, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}

	doc.Find(hiddenSelector).Remove()

	var parts []string
	for _, n := range doc.Nodes {
		parts = collect(n, parts)
	}
	return strings.Join(parts, " ")
}

func collect(n *html.Node, parts []string) []string {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			parts = append(parts, text)
		}
		return parts
	case html.CommentNode:
		return parts
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = collect(c, parts)
	}
	return parts
}
