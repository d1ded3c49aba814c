package ebay

import (
	"strconv"
	"strings"
	"time"

	"github.com/flipfinder/backend/internal/domain"
)

// sellingStateEndedWithSales marks a completed listing that actually sold
const sellingStateEndedWithSales = "EndedWithSales"

// The Finding API JSON format wraps every value in a single-element array.

// FindCompletedItemsResponse is the top-level findCompletedItems JSON response
type FindCompletedItemsResponse struct {
	FindCompletedItemsResponse []CompletedItemsResult `json:"findCompletedItemsResponse"`
}

// CompletedItemsResult is one result envelope
type CompletedItemsResult struct {
	Ack          []string       `json:"ack"`
	ErrorMessage []ErrorMessage `json:"errorMessage"`
	SearchResult []SearchResult `json:"searchResult"`
}

// ErrorMessage carries API-level errors returned with a 200 status
type ErrorMessage struct {
	Error []struct {
		ErrorID []string `json:"errorId"`
		Message []string `json:"message"`
	} `json:"error"`
}

// SearchResult holds the matched items
type SearchResult struct {
	Count string `json:"@count"`
	Item  []Item `json:"item"`
}

// Item is one completed listing
type Item struct {
	ItemID        []string        `json:"itemId"`
	Title         []string        `json:"title"`
	SellingStatus []SellingStatus `json:"sellingStatus"`
	ListingInfo   []ListingInfo   `json:"listingInfo"`
}

// SellingStatus holds the final price and state of a listing
type SellingStatus struct {
	CurrentPrice []Amount `json:"currentPrice"`
	SellingState []string `json:"sellingState"`
}

// Amount is a currency amount
type Amount struct {
	CurrencyID string `json:"@currencyId"`
	Value      string `json:"__value__"`
}

// ListingInfo holds listing timing
type ListingInfo struct {
	EndTime []string `json:"endTime"`
}

// MapToSoldItems converts a Finding API response to sold items.
// Only listings that ended with a sale and have a positive price are kept, up to limit.
func MapToSoldItems(resp *FindCompletedItemsResponse, limit int) []domain.SoldItem {
	items := []domain.SoldItem{}
	if resp == nil || len(resp.FindCompletedItemsResponse) == 0 {
		return items
	}
	result := resp.FindCompletedItemsResponse[0]
	if len(result.SearchResult) == 0 {
		return items
	}

	for _, item := range result.SearchResult[0].Item {
		if limit > 0 && len(items) >= limit {
			break
		}
		if first(firstStatus(item).SellingState) != sellingStateEndedWithSales {
			continue
		}

		price := parsePrice(firstStatus(item).CurrentPrice)
		if price <= 0 {
			continue
		}

		soldItem := domain.SoldItem{
			Title: first(item.Title),
			Price: price,
		}
		if len(item.ListingInfo) > 0 {
			soldItem.EndTime = parseEndTime(first(item.ListingInfo[0].EndTime))
		}
		items = append(items, soldItem)
	}

	return items
}

// APIError extracts the first error message of a failed response, if any
func APIError(resp *FindCompletedItemsResponse) (string, bool) {
	if resp == nil || len(resp.FindCompletedItemsResponse) == 0 {
		return "", false
	}
	result := resp.FindCompletedItemsResponse[0]
	ack := first(result.Ack)
	if ack == "" || strings.EqualFold(ack, "Success") || strings.EqualFold(ack, "Warning") {
		return "", false
	}

	for _, msg := range result.ErrorMessage {
		for _, e := range msg.Error {
			if m := first(e.Message); m != "" {
				return m, true
			}
		}
	}
	return ack, true
}

func firstStatus(item Item) SellingStatus {
	if len(item.SellingStatus) == 0 {
		return SellingStatus{}
	}
	return item.SellingStatus[0]
}

func parsePrice(amounts []Amount) float64 {
	if len(amounts) == 0 {
		return 0
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(amounts[0].Value), 64)
	if err != nil {
		return 0
	}
	return price
}

func parseEndTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
