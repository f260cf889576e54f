// Package links rewrites rendered HTML after templating.
//
// With a base URL configured, relative and root-relative URLs in
// anchor href and element src attributes are absolutized against it,
// and anchors leaving the site gain a class marker, target="_blank"
// and rel="noopener noreferrer". Without a base URL only the external
// anchor tagging happens and no URL is rewritten. Processing is
// idempotent, already-tagged output passes through unchanged.
//
// The document is scanned as a token stream. Tokens that need no
// change are copied through byte for byte; only modified opening tags
// are re-serialized.
package links

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExternalClass marks anchors that point off-site.
const ExternalClass = "external"

const externalRel = "noopener noreferrer"

// Processor rewrites one document at a time against a fixed base URL.
type Processor struct {
	base   *url.URL // resolution base with directory path, nil without base URL
	prefix string   // literal prefix identifying on-site absolute URLs
}

// NewProcessor returns a Processor for baseURL. An empty baseURL
// disables URL rewriting and keeps only external anchor tagging.
func NewProcessor(baseURL string) (*Processor, error) {
	if baseURL == "" {
		return &Processor{}, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	// Resolution needs a directory path, otherwise relative links
	// would replace the last path segment.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return &Processor{
		base:   base,
		prefix: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Process returns doc with link rewriting applied.
func (p *Processor) Process(doc string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var out bytes.Buffer
	out.Grow(len(doc))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return out.String(), nil
			}
			return "", fmt.Errorf("tokenize html: %w", z.Err())
		}

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			if rewritten, changed := p.rewriteTag(&tok, tt == html.SelfClosingTagToken); changed {
				out.WriteString(rewritten)
				continue
			}
		}
		out.Write(z.Raw())
	}
}

type urlClass int

const (
	classSkip        urlClass = iota // empty, fragment, mailto:, data:
	classRewritable                  // relative, root-relative, scheme-relative
	classOnSite                      // absolute and under the base URL
	classExternal                    // absolute and off-site
)

func (p *Processor) classify(ref string) urlClass {
	switch {
	case ref == "",
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "mailto:"),
		strings.HasPrefix(ref, "data:"):
		return classSkip
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if p.prefix != "" && strings.HasPrefix(ref, p.prefix) {
			return classOnSite
		}
		return classExternal
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return classExternal
	}
	return classRewritable
}

func (p *Processor) absolutize(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.base.ResolveReference(u).String()
}

// rewriteTag applies href/src rewriting to one opening tag. It
// reports whether anything changed; unchanged tags keep their raw
// bytes.
func (p *Processor) rewriteTag(tok *html.Token, selfClosing bool) (string, bool) {
	changed := false
	external := false

	for i := range tok.Attr {
		attr := &tok.Attr[i]
		switch {
		case tok.Data == "a" && attr.Key == "href":
			switch p.classify(attr.Val) {
			case classRewritable:
				if p.base != nil {
					if abs := p.absolutize(attr.Val); abs != attr.Val {
						attr.Val = abs
						changed = true
					}
				}
			case classExternal:
				external = true
			}
		case attr.Key == "src":
			if p.base != nil && p.classify(attr.Val) == classRewritable {
				if abs := p.absolutize(attr.Val); abs != attr.Val {
					attr.Val = abs
					changed = true
				}
			}
		}
	}

	if external {
		if p.tagExternal(tok) {
			changed = true
		}
	}

	if !changed {
		return "", false
	}
	return renderTag(tok, selfClosing), true
}

// tagExternal adds the safety attributes to an off-site anchor without
// disturbing attributes already there.
func (p *Processor) tagExternal(tok *html.Token) bool {
	changed := false
	haveClass, haveTarget, haveRel := false, false, false

	for i := range tok.Attr {
		attr := &tok.Attr[i]
		switch attr.Key {
		case "class":
			haveClass = true
			if merged, added := mergeTokens(attr.Val, ExternalClass); added {
				attr.Val = merged
				changed = true
			}
		case "target":
			haveTarget = true
		case "rel":
			haveRel = true
			if merged, added := mergeTokens(attr.Val, externalRel); added {
				attr.Val = merged
				changed = true
			}
		}
	}

	if !haveClass {
		tok.Attr = append(tok.Attr, html.Attribute{Key: "class", Val: ExternalClass})
		changed = true
	}
	if !haveTarget {
		tok.Attr = append(tok.Attr, html.Attribute{Key: "target", Val: "_blank"})
		changed = true
	}
	if !haveRel {
		tok.Attr = append(tok.Attr, html.Attribute{Key: "rel", Val: externalRel})
		changed = true
	}
	return changed
}

// mergeTokens unions space-separated tokens from want into existing,
// reporting whether anything was added.
func mergeTokens(existing, want string) (string, bool) {
	have := strings.Fields(existing)
	present := make(map[string]struct{}, len(have))
	for _, t := range have {
		present[t] = struct{}{}
	}

	added := false
	for _, t := range strings.Fields(want) {
		if _, ok := present[t]; ok {
			continue
		}
		have = append(have, t)
		present[t] = struct{}{}
		added = true
	}
	if !added {
		return existing, false
	}
	return strings.Join(have, " "), true
}

// renderTag serializes a modified opening tag, keeping attribute order.
func renderTag(tok *html.Token, selfClosing bool) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tok.Data)
	for _, attr := range tok.Attr {
		b.WriteByte(' ')
		b.WriteString(attr.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attr.Val))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	return b.String()
}
