package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxDescriptionLength caps LinkRef.Description, in runes.
const MaxDescriptionLength = 200

// LinkRef is one outbound anchor found on a page.
type LinkRef struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Links returns every navigable anchor in document order with its href
// resolved against baseURL. Empty hrefs, "#" and javascript: pseudo-URLs
// are skipped.
//
// On failure the returned slice is empty (never nil) and err wraps ErrExtraction.
func Links(raw, baseURL string) ([]LinkRef, error) {
	doc, err := parse(raw)
	if err != nil {
		return []LinkRef{}, err
	}

	links := []LinkRef{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		links = append(links, LinkRef{
			URL:         ResolveURL(href, baseURL),
			Description: truncate(describe(a, href), MaxDescriptionLength, ""),
		})
	})

	return links, nil
}

// describe picks the anchor text, then a child image's alt, then the
// anchor title, then the raw href.
func describe(a *goquery.Selection, href string) string {
	if text := normalize(a.Text()); text != "" {
		return text
	}
	if alt, ok := a.Find("img[alt]").First().Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		return strings.TrimSpace(alt)
	}
	if title, ok := a.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return href
}

// ResolveURL makes href absolute against base.
//
// Hrefs that already carry a scheme are returned as is. An absolute path
// ("/b") resolves against the base's scheme and host, a protocol-relative
// href ("//cdn/x") takes the base's scheme, and anything else is appended
// to base after ensuring base ends with "/". With an empty base the href
// is returned unchanged.
func ResolveURL(href, base string) string {
	if base == "" || hasScheme(href) {
		return href
	}

	if strings.HasPrefix(href, "/") {
		b, err := url.Parse(base)
		if err != nil || b.Scheme == "" {
			return href
		}
		if strings.HasPrefix(href, "//") {
			return b.Scheme + ":" + href
		}
		return b.Scheme + "://" + b.Host + href
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + href
}

// hasScheme reports whether s starts with an RFC 3986 scheme followed by ':'.
func hasScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case c == ':' && i > 0:
			return true
		default:
			return false
		}
	}
	return false
}
