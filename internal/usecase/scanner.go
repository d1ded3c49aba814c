package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flipfinder/backend/internal/domain"
)

// Presenter shows enrichment progress and results for a listing
type Presenter interface {
	Analyzing(rec domain.ListingRecord)
	Render(rec domain.ListingRecord, result domain.EnrichmentResult, settings domain.Settings)
}

// ScannerConfig holds configuration for the scanner
type ScannerConfig struct {
	ClearInterval time.Duration
}

// Scanner drives listings from a source through extraction, dedup, filtering and enrichment
type Scanner struct {
	source        domain.ListingSource
	extractor     domain.ListingExtractor
	tracker       *DedupTracker
	filter        *ResellabilityFilter
	pipeline      *EnrichmentPipeline
	session       *Session
	presenter     Presenter
	clearInterval time.Duration
	logger        *zap.Logger
}

// NewScanner creates a new scanner with dependencies
func NewScanner(
	source domain.ListingSource,
	extractor domain.ListingExtractor,
	tracker *DedupTracker,
	filter *ResellabilityFilter,
	pipeline *EnrichmentPipeline,
	session *Session,
	presenter Presenter,
	config ScannerConfig,
	logger *zap.Logger,
) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		source:        source,
		extractor:     extractor,
		tracker:       tracker,
		filter:        filter,
		pipeline:      pipeline,
		session:       session,
		presenter:     presenter,
		clearInterval: config.ClearInterval,
		logger:        logger.With(zap.String("component", "scanner")),
	}
}

// Run reads the source until it is exhausted or ctx is done. Each new listing is
// enriched in its own goroutine; Run returns after all of them have finished.
func (s *Scanner) Run(ctx context.Context) error {
	clearCtx, stopClear := context.WithCancel(ctx)
	clearDone := make(chan struct{})
	go func() {
		defer close(clearDone)
		s.tracker.RunPeriodicClear(clearCtx, s.clearInterval)
	}()
	defer func() {
		stopClear()
		<-clearDone
	}()

	g, gctx := errgroup.WithContext(ctx)
	sourceErr := s.readSource(ctx, gctx, g)

	if err := g.Wait(); err != nil {
		return err
	}
	return sourceErr
}

// readSource is the single loop that checks and marks fingerprints, so two
// discoveries of one node are never both accepted by this scanner.
func (s *Scanner) readSource(ctx, gctx context.Context, g *errgroup.Group) error {
	for {
		node, err := s.source.Next(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read listing source: %w", err)
		}

		if !s.session.Settings().Enabled {
			continue
		}

		fp := Fingerprint(node.Link, node.Text)
		if s.tracker.Has(fp) {
			continue
		}

		rec, err := s.extractor.Extract(node)
		if err != nil {
			if !errors.Is(err, domain.ErrNotAListing) {
				s.logger.Warn("extraction failed", zap.String("link", node.Link), zap.Error(err))
			}
			continue
		}
		s.tracker.Mark(fp)

		g.Go(func() error {
			s.process(gctx, rec)
			return nil
		})
	}
}

func (s *Scanner) process(ctx context.Context, rec domain.ListingRecord) {
	if !s.filter.IsResellable(ctx, rec.Title) {
		s.logger.Debug("skipping non-resellable listing", zap.String("title", rec.Title))
		return
	}

	s.presenter.Analyzing(rec)
	result := s.pipeline.Enrich(ctx, rec)

	stats, err := s.session.RecordResult(ctx, result)
	if err != nil {
		s.logger.Error("failed to persist stats", zap.Error(err))
	}
	if stats.NearUsageLimit() {
		s.logger.Warn("approaching monthly API limit",
			zap.Int("used", stats.APIUsageCount),
			zap.Int("limit", domain.MonthlyAPICallLimit),
		)
	}

	if !result.OK() {
		s.logger.Info("no estimate for listing",
			zap.String("title", rec.Title),
			zap.Error(result.Err()),
		)
	}

	s.presenter.Render(rec, result, s.session.Settings())
}

// ClearSeen forgets every processed listing, e.g. on an explicit user request
func (s *Scanner) ClearSeen() {
	s.tracker.Clear()
	s.logger.Info("cleared processed listings")
}

// Restart rewinds the source and forgets processed listings
func (s *Scanner) Restart(ctx context.Context) error {
	s.tracker.Clear()
	return s.source.Restart(ctx)
}
