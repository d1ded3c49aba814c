package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/flipfinder/backend/internal/domain"
)

// ProxyServiceConfig holds configuration for the proxy service
type ProxyServiceConfig struct {
	CacheTTL           time.Duration
	DefaultSearchLimit int
	MaxSearchLimit     int
}

// ProxyService forwards searches and model calls with server-held credentials
// and counts usage per account.
type ProxyService struct {
	cache        domain.CacheRepository
	searcher     domain.SoldItemSearcher
	model        domain.LanguageModel
	accounts     domain.AccountRepository
	preprocessor *QueryPreprocessor
	group        singleflight.Group
	cacheTTL     time.Duration
	defaultLimit int
	maxLimit     int
	now          func() time.Time
	logger       *zap.Logger
}

// NewProxyService creates a new proxy service with dependencies
func NewProxyService(
	cache domain.CacheRepository,
	searcher domain.SoldItemSearcher,
	model domain.LanguageModel,
	accounts domain.AccountRepository,
	config ProxyServiceConfig,
	logger *zap.Logger,
) *ProxyService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 6 * time.Hour
	}
	defaultLimit := config.DefaultSearchLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	maxLimit := config.MaxSearchLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}

	logger = logger.With(zap.String("component", "proxy_service"))

	return &ProxyService{
		cache:        cache,
		searcher:     searcher,
		model:        model,
		accounts:     accounts,
		preprocessor: NewQueryPreprocessor(logger),
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
		logger:       logger,
	}
}

// SearchSold returns completed sales for the query.
// Flow: check cache -> coalesce identical searches -> search upstream -> cache -> count usage
func (s *ProxyService) SearchSold(
	ctx context.Context,
	account *domain.Account,
	request *domain.SearchRequest,
) ([]domain.SoldItem, error) {
	if request == nil || strings.TrimSpace(request.Query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	limit := s.clampLimit(request.Limit)
	query := s.preprocessor.PreprocessQuery(request.Query)
	cacheKey := generateSearchCacheKey(query, limit)

	items, err := s.getFromCache(ctx, cacheKey)
	if err != nil {
		// the shared search outlives any single caller that gives up
		searchCtx := context.WithoutCancel(ctx)
		ch := s.group.DoChan(cacheKey, func() (interface{}, error) {
			found, err := s.searcher.SearchSold(searchCtx, query, limit)
			if err != nil {
				return nil, err
			}
			if err := s.cache.Set(searchCtx, cacheKey, found, s.cacheTTL); err != nil {
				s.logger.Warn("failed to cache search result", zap.String("key", cacheKey), zap.Error(err))
			}
			return found, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, res.Err)
		}
		items = res.Val.([]domain.SoldItem)
		if res.Shared {
			s.logger.Debug("coalesced search", zap.String("query", query))
		}
	}

	s.recordUsage(ctx, account, domain.OperationSearch)

	if items == nil {
		items = []domain.SoldItem{}
	}
	return items, nil
}

// EnhanceTitle asks the model for a more specific product name.
// A nil result means the title is already specific or too vague to improve.
func (s *ProxyService) EnhanceTitle(
	ctx context.Context,
	account *domain.Account,
	request *domain.EnhanceTitleRequest,
) (*string, error) {
	if request == nil || strings.TrimSpace(request.Title) == "" {
		return nil, domain.ErrInvalidRequest
	}

	enhanced, err := s.model.EnhanceTitle(ctx, request.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}

	s.recordUsage(ctx, account, domain.OperationEnhanceTitle)

	return optionalString(enhanced), nil
}

// AnalyzeImage asks the model to name the product shown in an image
func (s *ProxyService) AnalyzeImage(
	ctx context.Context,
	account *domain.Account,
	request *domain.AnalyzeImageRequest,
) (*string, error) {
	if request == nil || strings.TrimSpace(request.ImageURL) == "" {
		return nil, domain.ErrInvalidRequest
	}

	name, err := s.model.AnalyzeImage(ctx, request.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}

	s.recordUsage(ctx, account, domain.OperationAnalyzeImage)

	return optionalString(name), nil
}

func (s *ProxyService) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// recordUsage increments the account's monthly counter. Failures are logged only;
// the caller already received its upstream result.
func (s *ProxyService) recordUsage(ctx context.Context, account *domain.Account, operation string) {
	if account == nil || s.accounts == nil {
		return
	}
	count, err := s.accounts.IncrementUsage(ctx, account.ID, domain.UsagePeriod(s.now()), operation)
	if err != nil {
		s.logger.Error("failed to record usage",
			zap.String("account", account.ID),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("usage recorded",
		zap.String("account", account.ID),
		zap.String("operation", operation),
		zap.Int("count", count),
	)
}

// generateSearchCacheKey creates a normalized cache key.
// Format: "search:{normalized_query}:{limit}"
func generateSearchCacheKey(query string, limit int) string {
	return fmt.Sprintf("search:%s:%d", normalizeForCacheKey(query), limit)
}

// getFromCache retrieves sold items from cache
func (s *ProxyService) getFromCache(ctx context.Context, key string) ([]domain.SoldItem, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	items, ok := value.([]domain.SoldItem)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return items, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
