// Package parser extracts the references a page makes to other pages and to
// static assets.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// References holds the absolute URLs a rendered page points at, grouped by
// how they are archived.
type References struct {
	// Links are hyperlink targets (a[href]) that may be queued as pages.
	Links []string `json:"links"`
	// LinkHrefs are non-stylesheet link[href] and a[download] targets. Only
	// those with a known asset extension are downloaded.
	LinkHrefs   []string `json:"link_hrefs"`
	Stylesheets []string `json:"stylesheets"`
	Scripts     []string `json:"scripts"`
	Images      []string `json:"images"`
	Srcsets     []string `json:"srcsets"`
	Fonts       []string `json:"fonts"`
}

// Total returns the number of references across all categories.
func (r *References) Total() int {
	return len(r.Links) + len(r.LinkHrefs) + len(r.Stylesheets) + len(r.Scripts) +
		len(r.Images) + len(r.Srcsets) + len(r.Fonts)
}

// HTMLParser extracts references from static HTML.
type HTMLParser struct {
	baseURL *url.URL
}

// NewHTMLParser creates a parser that resolves against baseURL.
func NewHTMLParser(baseURL string) (*HTMLParser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &HTMLParser{baseURL: u}, nil
}

// Parse extracts references from an HTML document.
func (p *HTMLParser) Parse(html string) (*References, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base := p.baseURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(ResolveBase(base.String(), href)); err == nil {
			base = u
		}
	}

	refs := &References{}
	seen := make(map[string]map[string]bool)
	add := func(category string, dst *[]string, raw string) {
		resolved := resolveURL(base, raw)
		if resolved == "" {
			return
		}
		if seen[category] == nil {
			seen[category] = make(map[string]bool)
		}
		if seen[category][resolved] {
			return
		}
		seen[category][resolved] = true
		*dst = append(*dst, resolved)
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add("links", &refs.Links, href)
		if _, download := s.Attr("download"); download {
			add("link_hrefs", &refs.LinkHrefs, href)
		}
	})

	doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		rel := relTokens(s)

		if rel["stylesheet"] {
			add("stylesheets", &refs.Stylesheets, href)
			return
		}
		add("link_hrefs", &refs.LinkHrefs, href)

		if as, _ := s.Attr("as"); rel["preload"] && strings.EqualFold(as, "font") {
			add("fonts", &refs.Fonts, href)
		}
	})

	doc.Find("script[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add("scripts", &refs.Scripts, src)
	})

	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add("images", &refs.Images, src)
	})

	doc.Find("img[srcset], source[srcset]").Each(func(i int, s *goquery.Selection) {
		srcset, _ := s.Attr("srcset")
		for _, c := range ParseSrcset(srcset) {
			add("srcsets", &refs.Srcsets, c.URL)
		}
	})

	return refs, nil
}

// ResolveBase resolves a <base href> value against the page URL. An empty,
// unparsable or non-http result leaves pageURL as the base.
func ResolveBase(pageURL, baseHref string) string {
	baseHref = strings.TrimSpace(baseHref)
	if baseHref == "" {
		return pageURL
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	ref, err := url.Parse(baseHref)
	if err != nil {
		return pageURL
	}
	resolved := page.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return pageURL
	}
	return resolved.String()
}

func relTokens(s *goquery.Selection) map[string]bool {
	rel, _ := s.Attr("rel")
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(rel)) {
		tokens[tok] = true
	}
	return tokens
}

// resolveURL resolves a relative URL against base. Non-http schemes and
// in-page anchors yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
