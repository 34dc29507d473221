package mailbox

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	bareURLPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

	// Mailers often hide the real destination behind a tracking redirect
	// carrying the target as a URL-encoded query parameter.
	encodedTargetPattern = regexp.MustCompile(`target=(https?%3A%2F%2F[^&\s"]+)`)
)

// ExtractLinks pulls every link out of a message snippet. Snippets may be
// HTML fragments or plain text; anchors are read first, then bare URLs, then
// URL-encoded redirect targets are decoded. Order is preserved, duplicates
// dropped.
func ExtractLinks(snippet string) []string {
	if snippet == "" {
		return nil
	}

	var links []string

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet)); err == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				if href = strings.TrimSpace(href); strings.HasPrefix(href, "http") {
					links = append(links, href)
				}
			}
		})
	}

	links = append(links, bareURLPattern.FindAllString(snippet, -1)...)

	for _, match := range encodedTargetPattern.FindAllStringSubmatch(snippet, -1) {
		if decoded, err := url.QueryUnescape(match[1]); err == nil {
			links = append(links, decoded)
		}
	}

	return dedupe(links)
}

func dedupe(links []string) []string {
	if len(links) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(links))
	out := links[:0]
	for _, l := range links {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
