package feed

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/flipfinder/backend/internal/domain"
)

// titleSelectors are tried in order; the first element with a long enough text wins
var titleSelectors = []string{
	`span[dir="auto"]`,
	`div[dir="auto"]`,
	`h3`,
	`.x1i10hfl`,
}

const minTitleLength = 5

var priceRegex = regexp.MustCompile(`\$(\d[\d,]*)`)

// Extractor turns marketplace feed nodes into listing records
type Extractor struct{}

// NewExtractor creates a new feed node extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses the node's HTML. Nodes outside a marketplace page, without a price
// or without an image return domain.ErrNotAListing.
func (e *Extractor) Extract(node domain.FeedNode) (domain.ListingRecord, error) {
	if !strings.Contains(node.PageURL, "/marketplace") {
		return domain.ListingRecord{}, domain.ErrNotAListing
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(node.HTML))
	if err != nil {
		return domain.ListingRecord{}, fmt.Errorf("%w: %v", domain.ErrNotAListing, err)
	}
	root := doc.Find("body")
	text := root.Text()

	hasPrice := root.Find(`[data-testid*="price"]`).Length() > 0 || priceRegex.MatchString(text)
	img := root.Find("img").First()
	if !hasPrice || img.Length() == 0 {
		return domain.ListingRecord{}, domain.ErrNotAListing
	}

	title := extractTitle(root)
	price := extractPrice(text)
	if title == "" || price <= 0 {
		return domain.ListingRecord{}, domain.ErrNotAListing
	}

	return domain.ListingRecord{
		Title:    title,
		Price:    price,
		ImageURL: imageURL(img, node.PageURL),
	}, nil
}

func extractTitle(root *goquery.Selection) string {
	for _, selector := range titleSelectors {
		el := root.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); utf8.RuneCountInString(text) > minTitleLength {
			return text
		}
	}
	return ""
}

// extractPrice reads whole currency units from the first "$1,234" token
func extractPrice(text string) float64 {
	m := priceRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return float64(n)
}

func imageURL(img *goquery.Selection, pageURL string) string {
	src, _ := img.Attr("src")
	if strings.TrimSpace(src) == "" {
		src, _ = img.Attr("data-src")
	}
	return resolveURL(pageURL, strings.TrimSpace(src))
}

// resolveURL makes ref absolute against base; unparseable input is returned unchanged
func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
