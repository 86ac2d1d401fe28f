package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Page is a fetched and parsed HTML document.
type Page struct {
	// URL is the final location after redirects.
	URL        string
	StatusCode int
	Doc        *goquery.Document

	text  string
	links []string
}

// ParseHTML parses UTF-8 markup as if it had been fetched from pageURL.
func ParseHTML(pageURL, markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse %s", pageURL)
	}
	return newPage(pageURL, 200, doc), nil
}

func newPage(pageURL string, status int, doc *goquery.Document) *Page {
	p := &Page{URL: pageURL, StatusCode: status, Doc: doc}
	p.links = collectLinks(doc, pageURL)
	p.text = visibleText(doc)
	return p
}

// Text returns the visible text of the page with scripts, styles and
// templates removed and whitespace collapsed.
func (p *Page) Text() string { return p.text }

// Links returns every anchor href in document order, resolved against the
// page URL. mailto and tel links are kept verbatim.
func (p *Page) Links() []string { return p.links }

func collectLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || base == nil {
			links = append(links, href)
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		abs.Fragment = ""
		links = append(links, abs.String())
	})
	return links
}

// skipText lists elements whose content is never rendered as text.
var skipText = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true,
}

// visibleText joins every rendered text node with a space, the way a browser
// copy of the page would read, and collapses whitespace.
func visibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipText[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
