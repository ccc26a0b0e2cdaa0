package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// createDocument parses rendered HTML into a goquery document
func createDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// selectionText returns the whitespace-collapsed text of the first match
func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(sel.First().Text()), " ")
}

// resolveURL resolves href against base. Fragment-only, javascript and
// mailto links are rejected.
func resolveURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), true
}
