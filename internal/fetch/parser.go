package fetch

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/onionmap/onionmap/internal/model"
)

// ParseResult contains everything link extraction pulls out of a page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links are the outbound links in document order, normalized and
	// deduplicated. Deterministic: the same bytes always produce the
	// same sequence.
	Links []string
}

// Parser extracts the title and outbound links from HTML content.
//
// Design decision: golang.org/x/net/html rather than regex because it
// correctly handles the malformed HTML common on onion services and the
// traversal order is well defined, which the deterministic-extraction
// contract depends on.
type Parser struct {
	// baseURL resolves relative hrefs.
	baseURL *url.URL
}

// NewParser creates a parser for a page at the given URL.
func NewParser(pageURL string) (*Parser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the HTML document and collects the title and anchor hrefs.
// Only http(s) links survive; fragments are stripped and each link is
// normalized. Duplicate links keep their first position.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if link, ok := p.resolveHref(n); ok {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						result.Links = append(result.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveHref resolves an anchor's href against the page URL and
// normalizes it. Returns false for missing, unparsable, or non-http(s)
// hrefs.
func (p *Parser) resolveHref(n *html.Node) (string, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := p.baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	normalized, err := model.NormalizeURL(resolved.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}
