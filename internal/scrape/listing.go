// Package scrape parses the mailbox directory's listing, index, and detail
// pages.
package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/atmb-cli/internal/model"
)

// cityStateZipRe matches the "City, ST 12345" (optionally zip+4) last line
// of an address block.
var cityStateZipRe = regexp.MustCompile(`^(.*),\s+([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)

var brTagRe = regexp.MustCompile(`(?i)<br\s*/?>`)

// ListingURL returns the listing page URL for a state slug. Page 1 is the
// bare state page; later pages carry an explicit page parameter.
func ListingURL(baseURL, slug string, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/l/usa/%s", baseURL, slug)
	}
	return fmt.Sprintf("%s/l/usa/%s?page=%d", baseURL, slug, page)
}

// IndexURL returns the all-states index page URL.
func IndexURL(baseURL string) string {
	return baseURL + "/l/usa"
}

// ListingPage is the parse result for one listing page.
type ListingPage struct {
	Listings []model.Address
	// Skipped counts listing blocks missing a required address field.
	Skipped int
}

// ParseListingPage extracts every location block from a listing page.
// Relative detail links are resolved against baseURL.
func ParseListingPage(html []byte, baseURL string) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse listing page")
	}

	page := &ListingPage{}
	doc.Find(".theme-location-item").Each(func(_ int, item *goquery.Selection) {
		addr := parseAddressBlock(textLines(item.Find(".t-addr").First()))

		if href, ok := item.Find("a.theme-button").First().Attr("href"); ok {
			addr.DetailURL = absoluteURL(baseURL, href)
		}

		if !addr.Complete() {
			page.Skipped++
			return
		}
		page.Listings = append(page.Listings, addr)
	})

	return page, nil
}

// ParseStateIndex extracts the state slugs linked from the all-states index
// page, deduplicated and sorted.
func ParseStateIndex(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse state index")
	}

	seen := map[string]bool{}
	doc.Find(`a.theme-loc-link[href^="/l/usa/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		slug := strings.TrimSpace(href[strings.LastIndex(href, "/")+1:])
		if slug != "" {
			seen[slug] = true
		}
	})

	slugs := make([]string, 0, len(seen))
	for s := range seen {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs, nil
}

// parseAddressBlock reads street/city/state/zip from an address block's
// lines. Street is the first line; the last line carries "City, ST Zip".
func parseAddressBlock(lines []string) model.Address {
	if len(lines) == 0 {
		return model.Address{}
	}

	addr := model.Address{Street: lines[0]}
	if len(lines) < 2 {
		return addr
	}

	m := cityStateZipRe.FindStringSubmatch(lines[len(lines)-1])
	if m == nil {
		return addr
	}
	addr.City = strings.TrimSpace(m[1])
	addr.State = m[2]
	addr.Zip = m[3]
	return addr
}

// textLines returns the selection's text split on <br> boundaries, with
// blank lines removed. goquery's Text() flattens <br> separated content
// into one run, so the breaks are rewritten to newlines first.
func textLines(s *goquery.Selection) []string {
	html, err := s.Html()
	if err != nil {
		return nil
	}
	html = brTagRe.ReplaceAllString(html, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + html + "</div>"))
	if err != nil {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func absoluteURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return baseURL + href
	}
	return href
}
