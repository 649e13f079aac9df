// Package linkaudit checks that internal links in fetched pages point at routes
// present in the snapshot. Findings are reported, never fatal.
package linkaudit

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Link is a reference extracted from an HTML document.
type Link struct {
	URL       string // raw attribute value
	Tag       string // a, img, script, link, ...
	Attribute string // href, src
}

var linkAttributes = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
	"iframe": "src",
}

// ExtractLinks parses an HTML document and returns every link-bearing attribute in
// document order.
func ExtractLinks(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML").Build()
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttributes[n.Data]; ok {
				if v := strings.TrimSpace(getAttr(n, attr)); v != "" {
					links = append(links, Link{URL: v, Tag: n.Data, Attribute: attr})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// shouldCheck drops anchors, special schemes and empty links.
func shouldCheck(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// resolveInternal resolves raw against page and reports whether the result lives on
// the snapshot's host.
func resolveInternal(raw string, page, base *url.URL) (*url.URL, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	abs := page.ResolveReference(ref)
	if abs.Scheme != "" && abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	if !strings.EqualFold(abs.Host, base.Host) {
		return nil, false
	}
	return abs, true
}
