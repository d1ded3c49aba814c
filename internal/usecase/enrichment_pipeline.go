package usecase

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

const (
	// MinComparableResults is the number of sold items that ends the cascade early
	MinComparableResults = 3

	// DefaultSearchLimit is the number of sold items requested per search
	DefaultSearchLimit = 3
)

// EnrichmentPipelineConfig holds configuration for the enrichment pipeline
type EnrichmentPipelineConfig struct {
	SearchLimit int
}

// EnrichmentPipeline estimates resale value for a listing with a three-stage fallback
// cascade: exact title search, model-enhanced title search, image-derived name search.
type EnrichmentPipeline struct {
	searcher domain.SoldItemSearcher
	enhancer domain.TitleEnhancer
	analyzer domain.ImageAnalyzer
	limit    int
	logger   *zap.Logger
}

// NewEnrichmentPipeline creates a pipeline. enhancer and analyzer may be nil, which
// makes the corresponding stage unavailable.
func NewEnrichmentPipeline(
	searcher domain.SoldItemSearcher,
	enhancer domain.TitleEnhancer,
	analyzer domain.ImageAnalyzer,
	config EnrichmentPipelineConfig,
	logger *zap.Logger,
) *EnrichmentPipeline {
	limit := config.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EnrichmentPipeline{
		searcher: searcher,
		enhancer: enhancer,
		analyzer: analyzer,
		limit:    limit,
		logger:   logger.With(zap.String("component", "enrichment_pipeline")),
	}
}

type stageFunc func(ctx context.Context, rec domain.ListingRecord) (domain.StageOutcome, int)

type stageDecision int

const (
	decisionContinue stageDecision = iota
	decisionStop
	decisionAbort
)

// decide applies the stage policy: a hard-stop failure aborts, enough results stop,
// anything else (few results, unavailable, transient failure) moves to the next stage.
func decide(outcome domain.StageOutcome) stageDecision {
	switch {
	case outcome.Status == domain.StageFailed && domain.IsHardStop(outcome.Err):
		return decisionAbort
	case outcome.Status == domain.StageSucceeded && len(outcome.Items) >= MinComparableResults:
		return decisionStop
	default:
		return decisionContinue
	}
}

// Enrich runs the cascade for one listing and computes profit metrics.
// Failures are reported in the result; Enrich never panics on remote errors.
func (p *EnrichmentPipeline) Enrich(ctx context.Context, rec domain.ListingRecord) domain.EnrichmentResult {
	result := domain.EnrichmentResult{SourcePrice: rec.Price}

	var (
		items     []domain.SoldItem
		query     string
		lastError error
	)

	stages := []stageFunc{p.exactSearch, p.enhancedSearch, p.imageSearch}

cascade:
	for _, run := range stages {
		outcome, calls := run(ctx, rec)
		result.RemoteCalls += calls
		result.Stages = append(result.Stages, outcome)

		p.logger.Debug("stage finished",
			zap.String("title", rec.Title),
			zap.Stringer("stage", outcome.Stage),
			zap.Stringer("status", outcome.Status),
			zap.String("query", outcome.Query),
			zap.Int("items", len(outcome.Items)),
			zap.Error(outcome.Err),
		)

		// every search replaces the previous results, even when it found nothing
		if searched(outcome) {
			items, query = outcome.Items, outcome.Query
		}
		if outcome.Err != nil {
			lastError = outcome.Err
		}

		if decide(outcome) != decisionContinue {
			break cascade
		}
	}

	if len(items) == 0 {
		result.Failure = domain.FailureNoMatches
		result.Cause = lastError
		return result
	}

	metrics, ok := computeProfit(rec.Price, items)
	if !ok {
		result.Failure = domain.FailureComputationFailed
		return result
	}

	result.EstimatedValue = metrics.estimatedValue
	result.Profit = metrics.profit
	result.ProfitMarginPct = metrics.marginPct
	result.SampleSize = len(items)
	result.MatchedQuery = query
	return result
}

// searched reports whether the stage reached the sold-items search. Failed model
// calls leave Query empty; a failed search keeps it.
func searched(outcome domain.StageOutcome) bool {
	if outcome.Query == "" {
		return false
	}
	return outcome.Status == domain.StageSucceeded || outcome.Status == domain.StageFailed
}

func (p *EnrichmentPipeline) exactSearch(ctx context.Context, rec domain.ListingRecord) (domain.StageOutcome, int) {
	outcome := domain.StageOutcome{Stage: domain.StageExactSearch, Query: strings.TrimSpace(rec.Title)}
	if outcome.Query == "" {
		outcome.Status = domain.StageUnavailable
		return outcome, 0
	}
	return p.search(ctx, outcome), 1
}

func (p *EnrichmentPipeline) enhancedSearch(ctx context.Context, rec domain.ListingRecord) (domain.StageOutcome, int) {
	outcome := domain.StageOutcome{Stage: domain.StageEnhancedSearch}
	if p.enhancer == nil {
		outcome.Status = domain.StageUnavailable
		return outcome, 0
	}

	enhanced, err := p.enhancer.EnhanceTitle(ctx, rec.Title)
	if err != nil {
		outcome.Status = domain.StageFailed
		outcome.Err = err
		return outcome, 1
	}

	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" || strings.EqualFold(enhanced, strings.TrimSpace(rec.Title)) {
		outcome.Status = domain.StageUnavailable
		return outcome, 1
	}

	outcome.Query = enhanced
	return p.search(ctx, outcome), 2
}

func (p *EnrichmentPipeline) imageSearch(ctx context.Context, rec domain.ListingRecord) (domain.StageOutcome, int) {
	outcome := domain.StageOutcome{Stage: domain.StageImageSearch}
	if p.analyzer == nil || rec.ImageURL == "" {
		outcome.Status = domain.StageUnavailable
		return outcome, 0
	}

	name, err := p.analyzer.AnalyzeImage(ctx, rec.ImageURL)
	if err != nil {
		outcome.Status = domain.StageFailed
		outcome.Err = err
		return outcome, 1
	}

	name = strings.TrimSpace(name)
	if name == "" {
		outcome.Status = domain.StageUnavailable
		return outcome, 1
	}

	outcome.Query = name
	return p.search(ctx, outcome), 2
}

func (p *EnrichmentPipeline) search(ctx context.Context, outcome domain.StageOutcome) domain.StageOutcome {
	items, err := p.searcher.SearchSold(ctx, outcome.Query, p.limit)
	if err != nil {
		outcome.Status = domain.StageFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = domain.StageSucceeded
	outcome.Items = items
	return outcome
}

type profitMetrics struct {
	estimatedValue float64
	profit         float64
	marginPct      float64
}

// computeProfit averages the sold prices against the listing price. Money values are
// rounded to whole units; the margin is computed from the unrounded profit and rounded
// to one decimal.
func computeProfit(price float64, items []domain.SoldItem) (profitMetrics, bool) {
	if len(items) == 0 || price <= 0 || !isFinite(price) {
		return profitMetrics{}, false
	}

	var sum float64
	for _, item := range items {
		sum += item.Price
	}
	mean := sum / float64(len(items))
	profit := mean - price
	margin := profit / price * 100

	if !isFinite(mean) || !isFinite(margin) {
		return profitMetrics{}, false
	}

	return profitMetrics{
		estimatedValue: math.Round(mean),
		profit:         math.Round(profit),
		marginPct:      math.Round(margin*10) / 10,
	}, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
