package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

// nonResellableKeywords mark listings that are services, jobs, rentals or notices.
// They are checked before resellableKeywords.
var nonResellableKeywords = []string{
	"hiring", "employees", "job", "work", "employment",
	"hair removal", "massage", "service", "repair",
	"missing", "lost", "found", "reward",
	"rent", "rental", "lease", "roommate", "room for",
	"tutoring", "lessons", "teaching", "coaching",
	"cleaning", "handyman", "contractor", "babysitting",
	"dog walking", "pet sitting", "lawn care", "snow removal",
}

// resellableKeywords mark physical products with an established resale market
var resellableKeywords = []string{
	"iphone", "samsung", "apple", "laptop", "computer",
	"camera", "canon", "nikon", "sony",
	"xbox", "playstation", "nintendo",
	"shoes", "nike", "adidas", "jordan",
	"watch", "rolex", "jewelry", "ring", "necklace",
	"furniture", "chair", "table", "couch",
	"tv", "tablet", "ipad", "headphones", "speakers",
}

// ResellabilityFilter decides whether a listing title is worth enriching
type ResellabilityFilter struct {
	classifier domain.ResellabilityClassifier
	logger     *zap.Logger
}

// NewResellabilityFilter creates a filter. classifier may be nil, in which case
// only the keyword heuristic is used.
func NewResellabilityFilter(classifier domain.ResellabilityClassifier, logger *zap.Logger) *ResellabilityFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResellabilityFilter{
		classifier: classifier,
		logger:     logger.With(zap.String("component", "resellability_filter")),
	}
}

// IsResellable asks the remote classifier first and degrades to keywords on any failure.
// Only an exact "yes" from the classifier accepts the title. It never returns an error.
func (f *ResellabilityFilter) IsResellable(ctx context.Context, title string) bool {
	if f.classifier == nil {
		return KeywordResellable(title)
	}

	answer, err := f.classifier.ClassifyResellable(ctx, title)
	if err != nil {
		f.logger.Warn("classification degraded to keywords",
			zap.String("title", title),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)),
		)
		return KeywordResellable(title)
	}

	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// KeywordResellable is the offline heuristic: any non-resellable keyword rejects,
// then any resellable keyword accepts, otherwise the title is accepted.
func KeywordResellable(title string) bool {
	lower := strings.ToLower(title)

	for _, keyword := range nonResellableKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}

	for _, keyword := range resellableKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return true
}
