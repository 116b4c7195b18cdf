package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/entrhq/hltvquery/pkg/browser"
)

// parseDocument parses serialized HTML, drops consent overlays that slipped
// past the in-page cleanup and rejects documents without content.
func parseDocument(content string) (*goquery.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: no content", ErrPageEmpty)
	}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageEmpty, err)
	}
	if !hasContent(root) {
		return nil, fmt.Errorf("%w: no root element", ErrPageEmpty)
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find(strings.Join(browser.OverlaySelectors, ", ")).Remove()
	return doc, nil
}

// hasContent reports whether the tree has an <html> element whose body
// holds at least one element or some text.
func hasContent(root *html.Node) bool {
	var htmlNode *html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			htmlNode = c
			break
		}
	}
	if htmlNode == nil {
		return false
	}

	for c := htmlNode.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "body" {
			continue
		}
		for n := c.FirstChild; n != nil; n = n.NextSibling {
			switch n.Type {
			case html.ElementNode:
				return true
			case html.TextNode:
				if strings.TrimSpace(n.Data) != "" {
					return true
				}
			}
		}
	}
	return false
}
