package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SoldItemSearcher queries the auction-history API for completed sales
type SoldItemSearcher interface {
	SearchSold(ctx context.Context, query string, limit int) ([]SoldItem, error)
}

// TitleEnhancer proposes a more specific product name for a vague title.
// An empty string means no enhancement (title sufficient or too vague).
type TitleEnhancer interface {
	EnhanceTitle(ctx context.Context, title string) (string, error)
}

// ImageAnalyzer proposes a product name from a listing image. Empty means none.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL string) (string, error)
}

// ResellabilityClassifier asks a remote model whether a title is a resellable physical product.
// It returns the raw model answer.
type ResellabilityClassifier interface {
	ClassifyResellable(ctx context.Context, title string) (string, error)
}

// LanguageModel is the full set of model-backed operations the proxy forwards
type LanguageModel interface {
	TitleEnhancer
	ImageAnalyzer
}

// AccountRepository persists subscriber accounts and their usage counters
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Upsert(ctx context.Context, account *Account) error
	GetUsage(ctx context.Context, accountID, period string) (int, error)
	IncrementUsage(ctx context.Context, accountID, period, operation string) (int, error)
	Close(ctx context.Context) error
}

// KeyValueStore persists the scanner session (settings, stats)
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ListingSource produces raw feed nodes. Next returns io.EOF when the source is exhausted;
// live sources block until new nodes appear or ctx is done. Restart rewinds the sequence.
type ListingSource interface {
	Next(ctx context.Context) (FeedNode, error)
	Restart(ctx context.Context) error
}

// ListingExtractor turns a feed node into a listing record, or returns ErrNotAListing
type ListingExtractor interface {
	Extract(node FeedNode) (ListingRecord, error)
}
