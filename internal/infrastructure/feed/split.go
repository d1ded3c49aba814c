package feed

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/flipfinder/backend/internal/domain"
)

// candidateSelector matches the elements the marketplace renders listing cards in
const candidateSelector = `div[role="article"], a[role="link"]`

// SplitPage turns a rendered feed page into candidate nodes in document order
func SplitPage(pageURL, html string) ([]domain.FeedNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed page: %w", err)
	}

	var nodes []domain.FeedNode
	doc.Find(candidateSelector).Each(func(_ int, s *goquery.Selection) {
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		nodes = append(nodes, domain.FeedNode{
			PageURL: pageURL,
			Link:    nodeLink(s, pageURL),
			Text:    s.Text(),
			HTML:    outer,
		})
	})
	return nodes, nil
}

// nodeLink is the node's own href when it is an anchor, else its first descendant anchor's
func nodeLink(s *goquery.Selection, pageURL string) string {
	if goquery.NodeName(s) == "a" {
		if href, ok := s.Attr("href"); ok {
			return resolveURL(pageURL, href)
		}
	}
	href, _ := s.Find("a[href]").First().Attr("href")
	return resolveURL(pageURL, href)
}
