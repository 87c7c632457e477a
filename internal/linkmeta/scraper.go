// Package linkmeta resolves a Link's URL into title/description/
// favicon/image preview metadata, backed by an HTTP fetch and an HTML
// parse of the page's Open Graph and meta tags.
package linkmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/docbox-nz/docbox/internal/docboxerr"
)

// maxBodyBytes bounds how much of a remote page is read before
// parsing.
const maxBodyBytes = 1 << 20

// ScraperClient is the external web-scraper dependency:
// GET url -> metadata.
type ScraperClient interface {
	Fetch(ctx context.Context, rawURL string) (*Metadata, error)
}

// Metadata is the resolved preview for a Link's Value.
type Metadata struct {
	Title       string
	Description string
	Favicon     string
	Image       string
}

// HTTPScraper implements ScraperClient with net/http + golang.org/x/net/html.
type HTTPScraper struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPScraper creates an HTTPScraper with sane request timeouts.
func NewHTTPScraper() *HTTPScraper {
	return &HTTPScraper{
		Client:    &http.Client{Timeout: 10 * time.Second},
		UserAgent: "docbox-link-preview/1.0",
	}
}

var _ ScraperClient = (*HTTPScraper)(nil)

func (s *HTTPScraper) Fetch(ctx context.Context, rawURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("linkmeta.HTTPScraper.Fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, docboxerr.Wrap(docboxerr.StorageFailure, "fetch link preview", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, docboxerr.New(docboxerr.ProcessingFailure, fmt.Sprintf("link preview fetch: HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("linkmeta.HTTPScraper.Fetch: read body: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("linkmeta.HTTPScraper.Fetch: parse html: %w", err)
	}

	meta := extractMetadata(doc, rawURL)
	return meta, nil
}

// extractMetadata walks the parsed document for <title>, Open Graph
// meta tags, and a favicon <link>, falling back to a default favicon
// path when none is declared.
func extractMetadata(doc *html.Node, pageURL string) *Metadata {
	m := &Metadata{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && m.Title == "" {
					m.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				applyMetaTag(n, m)
			case "link":
				applyLinkTag(n, m)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if m.Favicon == "" {
		m.Favicon = defaultFavicon(pageURL)
	}
	return m
}

func applyMetaTag(n *html.Node, m *Metadata) {
	var property, name, content string
	for _, a := range n.Attr {
		switch a.Key {
		case "property":
			property = a.Val
		case "name":
			name = a.Val
		case "content":
			content = a.Val
		}
	}
	switch {
	case property == "og:title" && content != "":
		m.Title = content
	case (property == "og:description" || name == "description") && m.Description == "":
		m.Description = content
	case property == "og:image" && content != "":
		m.Image = content
	}
}

func applyLinkTag(n *html.Node, m *Metadata) {
	var rel, href string
	for _, a := range n.Attr {
		switch a.Key {
		case "rel":
			rel = a.Val
		case "href":
			href = a.Val
		}
	}
	if strings.Contains(rel, "icon") && href != "" {
		m.Favicon = href
	}
}

func defaultFavicon(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s://%s/favicon.ico", u.Scheme, u.Host)
}
