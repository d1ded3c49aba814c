package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flipfinder/backend/internal/delivery/terminal"
	"github.com/flipfinder/backend/internal/domain"
	"github.com/flipfinder/backend/internal/infrastructure/feed"
	"github.com/flipfinder/backend/internal/infrastructure/llm"
	"github.com/flipfinder/backend/internal/infrastructure/proxyclient"
	"github.com/flipfinder/backend/internal/usecase"
)

const defaultFeedURL = "https://www.facebook.com/marketplace/"

func newScanCmd(a *app) *cobra.Command {
	var (
		files   []string
		feedURL string
		pageURL string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a live feed (--url) or saved feed pages (--file)",
		Example: `  scanner scan --url https://www.facebook.com/marketplace/nyc/
  scanner scan --file feed1.html --file feed2.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 && feedURL == "" {
				feedURL = defaultFeedURL
			}
			if len(files) > 0 && feedURL != "" {
				return errors.New("use either --file or --url, not both")
			}

			var source domain.ListingSource
			if len(files) > 0 {
				source = feed.NewSnapshotSource(pageURL, files...)
			} else {
				browser := feed.NewBrowserSource(feedURL, feed.BrowserConfig{
					ChromePath:  a.cfg.Browser.ChromePath,
					Headless:    a.cfg.Browser.Headless,
					UserDataDir: a.cfg.Browser.UserDataDir,
					ScrollDelay: a.cfg.Browser.ScrollDelay,
					MaxScrolls:  a.cfg.Browser.MaxScrolls,
				}, a.logger)
				defer browser.Close()
				source = browser
			}

			return a.scan(cmd, source)
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "Saved feed page (repeatable)")
	cmd.Flags().StringVar(&feedURL, "url", "", "Live feed URL opened in a headless browser")
	cmd.Flags().StringVar(&pageURL, "page-url", defaultFeedURL, "Page URL the saved files were captured from")

	return cmd
}

func (a *app) scan(cmd *cobra.Command, source domain.ListingSource) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := a.session.Settings()
	if settings.Credentials.ProxyToken == "" {
		a.logger.Warn("no proxy token saved; run `scanner login` first")
	}

	proxy := proxyclient.NewClient(a.resolveProxyURL(), func() string {
		return a.session.Settings().Credentials.ProxyToken
	}, a.logger)

	classifier, err := a.classifier(ctx, settings.Credentials.LLMAPIKey)
	if err != nil {
		return err
	}

	scanner := usecase.NewScanner(
		source,
		feed.NewExtractor(),
		usecase.NewDedupTracker(),
		usecase.NewResellabilityFilter(classifier, a.logger),
		usecase.NewEnrichmentPipeline(proxy, proxy, proxy, usecase.EnrichmentPipelineConfig{
			SearchLimit: a.cfg.SearchLimit,
		}, a.logger),
		a.session,
		terminal.NewPresenter(cmd.OutOrStdout()),
		usecase.ScannerConfig{ClearInterval: a.cfg.ClearInterval},
		a.logger,
	)

	// SIGHUP forgets every seen listing so the whole feed is re-evaluated
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				scanner.ClearSeen()
			}
		}
	}()

	if err := scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printStats(cmd.OutOrStdout(), a.session.Stats())
	return nil
}

// classifier returns the remote resellability classifier, or nil for keyword-only filtering
func (a *app) classifier(ctx context.Context, apiKey string) (domain.ResellabilityClassifier, error) {
	if apiKey == "" {
		a.logger.Info("no LLM key saved; using keyword resellability filter")
		return nil, nil
	}
	client, err := llm.NewClient(ctx, llm.Config{APIKey: apiKey}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	a.logger.Debug("remote resellability classifier enabled")
	return client, nil
}
