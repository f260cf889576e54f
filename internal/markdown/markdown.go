// Package markdown wraps the goldmark converter behind the narrow
// text-to-HTML boundary the build pipeline consumes. Nothing outside this
// package touches goldmark types.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// MoreMarker is the inline boundary marking where a list preview should
// truncate a post's rendered content. It is an HTML comment so the
// converter passes it through verbatim.
const MoreMarker = "<!--more-->"

// converter is safe for concurrent use; WithUnsafe keeps raw HTML (and the
// read-more marker comment) in the output.
var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithUnsafe()),
)

// Convert renders a markdown body (leading date line already stripped) to HTML.
func Convert(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := converter.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// FirstHeading returns the text of the first top-level heading in src, or
// the empty string when the document has none.
func FirstHeading(src []byte) string {
	root := converter.Parser().Parse(text.NewReader(src))
	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering || title != "" {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = nodeText(h, src)
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(title)
}

// SplitPreview cuts rendered HTML at the read-more marker. truncated
// reports whether a marker was present.
func SplitPreview(html string) (preview string, truncated bool) {
	if idx := strings.Index(html, MoreMarker); idx >= 0 {
		return html[:idx], true
	}
	return html, false
}

// nodeText collects the raw text content below a node.
func nodeText(n gmast.Node, src []byte) string {
	var b bytes.Buffer
	_ = gmast.Walk(n, func(child gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if t, ok := child.(*gmast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
		return gmast.WalkContinue, nil
	})
	return b.String()
}
