package scrape

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// suiteRe matches lines that carry a unit designator. The bare "#" form is
// matched outside the word-boundary group.
var suiteRe = regexp.MustCompile(`(?i)\b(Suite|Ste|Unit|Apt)\b|#`)

// placeholderLines are boilerplate rows the site renders inside the address
// block that never carry unit info.
var placeholderLines = []string{
	"United States",
	"Your Real Street Address",
	"YOUR NAME",
}

// ExtractSuite pulls the suite/unit line from a detail page's address
// block. Returns "" when the page has no unit number, which is not an
// error. Only the .t-addr container is searched so footer addresses
// (the site's own "Suite 244") are never picked up.
func ExtractSuite(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	addr := doc.Find(".t-addr").First()
	if addr.Length() == 0 {
		return ""
	}

	for _, line := range textLines(addr) {
		if isPlaceholder(line) {
			continue
		}
		if !suiteRe.MatchString(line) {
			continue
		}
		// The site renders "MAILBOX" where the operator's box number goes.
		clean := strings.TrimSpace(strings.ReplaceAll(line, "MAILBOX", ""))
		if len(clean) > 1 {
			return clean
		}
	}
	return ""
}

func isPlaceholder(line string) bool {
	for _, p := range placeholderLines {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// IsRedirectMiss reports whether a detail fetch was redirected away to the
// locations index or the site root, which means the listing's detail page
// no longer exists.
func IsRedirectMiss(finalURL, requestedURL, baseURL string) bool {
	if finalURL == "" || finalURL == requestedURL {
		return false
	}
	if strings.Contains(finalURL, "/locations") {
		return true
	}
	return strings.TrimRight(finalURL, "/") == strings.TrimRight(baseURL, "/")
}
