package domain

import "time"

// FeedNode is one raw candidate element taken from the marketplace feed.
// The core only reads Link and Text (for fingerprinting); HTML is handed to the extractor.
type FeedNode struct {
	PageURL string `json:"pageUrl"`
	Link    string `json:"link,omitempty"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// ListingRecord is the normalized form of a marketplace listing
type ListingRecord struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// ListingFingerprint identifies a listing for dedup purposes. It is not a cryptographic identity.
type ListingFingerprint string

// SoldItem is one completed sale returned by the auction-history search
type SoldItem struct {
	Title   string    `json:"title"`
	Price   float64   `json:"price"`
	EndTime time.Time `json:"endTime"`
}

// SearchRequest represents a sold-items search request
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty" binding:"omitempty,min=1,max=100"`
}

// SearchResponse is the proxy response for a sold-items search
type SearchResponse struct {
	SoldItems []SoldItem `json:"soldItems"`
}

// EnhanceTitleRequest asks the language model to sharpen a listing title
type EnhanceTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// EnhanceTitleResponse carries the enhanced title, or null when no enhancement applies
type EnhanceTitleResponse struct {
	EnhancedTitle *string `json:"enhancedTitle"`
}

// AnalyzeImageRequest asks the language model to name the product in an image
type AnalyzeImageRequest struct {
	ImageURL string `json:"imageUrl" binding:"required,url"`
}

// AnalyzeImageResponse carries the proposed product name, or null
type AnalyzeImageResponse struct {
	ProductName *string `json:"productName"`
}
