package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flipfinder/backend/internal/domain"
)

const (
	operationFindCompletedItems = "findCompletedItems"
	defaultEntriesPerPage       = 20
	maxEntriesPerPage           = 100
)

// Client handles communication with the eBay Finding API
type Client struct {
	httpClient  *http.Client
	appID       string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new Finding API client limited to requestsPerHour
func NewClient(appID, baseURL string, requestsPerHour int, logger *zap.Logger) *Client {
	if requestsPerHour <= 0 {
		requestsPerHour = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// rate.Limit is requests per second
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerHour)/3600), 10) // burst of 10 requests

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		appID:       appID,
		baseURL:     baseURL,
		rateLimiter: limiter,
		logger:      logger.With(zap.String("component", "ebay_client")),
	}
}

// buildSearchURL builds the findCompletedItems request for sold fixed-price and
// auction-with-BIN listings, soonest end time first.
func (c *Client) buildSearchURL(query string, limit int) string {
	entries := limit
	if entries <= 0 {
		entries = defaultEntriesPerPage
	}
	if entries > maxEntriesPerPage {
		entries = maxEntriesPerPage
	}

	params := url.Values{}
	params.Add("OPERATION-NAME", operationFindCompletedItems)
	params.Add("SERVICE-VERSION", "1.0.0")
	params.Add("SECURITY-APPNAME", c.appID)
	params.Add("RESPONSE-DATA-FORMAT", "JSON")
	params.Add("keywords", query)
	params.Add("itemFilter(0).name", "SoldItemsOnly")
	params.Add("itemFilter(0).value", "true")
	params.Add("itemFilter(1).name", "ListingType")
	params.Add("itemFilter(1).value", "AuctionWithBIN")
	params.Add("itemFilter(1).value", "FixedPrice")
	params.Add("sortOrder", "EndTimeSoonest")
	params.Add("paginationInput.entriesPerPage", strconv.Itoa(entries))

	return fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
}

// SearchSold searches completed listings that ended with a sale.
// A single attempt is made; an empty result is not an error.
func (c *Client) SearchSold(ctx context.Context, query string, limit int) ([]domain.SoldItem, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildSearchURL(query, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "FlipFinder/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrUpstreamFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("finding API error",
			zap.Int("status", resp.StatusCode),
			zap.String("query", query),
			zap.ByteString("body", truncate(body, 512)),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamFailure, resp.StatusCode)
	}

	var searchResp FindCompletedItemsResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstreamFailure, err)
	}

	if msg, failed := APIError(&searchResp); failed {
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamFailure, msg)
	}

	items := MapToSoldItems(&searchResp, limit)
	c.logger.Debug("sold items found", zap.String("query", query), zap.Int("count", len(items)))
	return items, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
