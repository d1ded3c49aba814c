package feed

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserConfig controls the headless browser session
type BrowserConfig struct {
	ChromePath  string
	Headless    bool
	UserDataDir string        // reuse a logged-in profile
	ScrollDelay time.Duration // wait after each scroll for the feed to render
	MaxScrolls  int           // 0 scrolls until the context is cancelled
	LoadTimeout time.Duration
}

// BrowserSource streams candidate nodes from a live feed page by scrolling it.
// Each pass emits only nodes that no earlier capture produced, so clearing the
// dedup tracker does not replay the whole rendered feed. Restart forgets them.
type BrowserSource struct {
	pageURL  string
	config   BrowserConfig
	logger   *zap.Logger
	snapshot func() (location, html string, err error)

	mu          sync.Mutex
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	started     bool
	scrolls     int
	pending     []domain.FeedNode
	emitted     map[uint64]struct{}
}

// NewBrowserSource creates a source for pageURL. The browser starts on the first Next.
func NewBrowserSource(pageURL string, config BrowserConfig, logger *zap.Logger) *BrowserSource {
	if config.ScrollDelay <= 0 {
		config.ScrollDelay = 2 * time.Second
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BrowserSource{
		pageURL: pageURL,
		config:  config,
		logger:  logger.With(zap.String("component", "browser_source")),
		emitted: make(map[uint64]struct{}),
	}
	b.snapshot = b.snapshotDOM
	return b
}

func (b *BrowserSource) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if b.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ChromePath))
	}
	if b.config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.config.UserDataDir))
	}
	return opts
}

// start launches the browser and loads the feed page; callers hold b.mu
func (b *BrowserSource) start() error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.browserCtx = tabCtx
	b.cancelAlloc = cancelAlloc
	b.cancelTab = cancelTab

	if err := b.run(chromedp.Navigate(b.pageURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		b.shutdown()
		return fmt.Errorf("failed to open feed %s: %w", b.pageURL, err)
	}

	b.started = true
	b.scrolls = 0
	b.logger.Info("feed page loaded", zap.String("url", b.pageURL))
	return nil
}

func (b *BrowserSource) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(b.browserCtx, b.config.LoadTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Next blocks until the page yields another candidate node. It returns io.EOF
// after MaxScrolls passes.
func (b *BrowserSource) Next(ctx context.Context) (domain.FeedNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return domain.FeedNode{}, err
		}
		if !b.started {
			if err := b.start(); err != nil {
				return domain.FeedNode{}, err
			}
		} else if b.config.MaxScrolls > 0 && b.scrolls >= b.config.MaxScrolls {
			return domain.FeedNode{}, io.EOF
		} else if err := b.scroll(ctx); err != nil {
			return domain.FeedNode{}, err
		}

		nodes, err := b.capture()
		if err != nil {
			return domain.FeedNode{}, err
		}
		b.pending = nodes
	}

	node := b.pending[0]
	b.pending = b.pending[1:]
	return node, nil
}

func (b *BrowserSource) scroll(ctx context.Context) error {
	if err := b.run(chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("failed to scroll feed: %w", err)
	}
	b.scrolls++

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.config.ScrollDelay):
		return nil
	}
}

func (b *BrowserSource) snapshotDOM() (string, string, error) {
	var html, location string
	err := b.run(
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to capture feed: %w", err)
	}
	return location, html, nil
}

// capture splits the current page and keeps the nodes not emitted before
func (b *BrowserSource) capture() ([]domain.FeedNode, error) {
	location, html, err := b.snapshot()
	if err != nil {
		return nil, err
	}

	nodes, err := SplitPage(location, html)
	if err != nil {
		return nil, err
	}

	fresh := nodes[:0]
	for _, node := range nodes {
		key := nodeKey(node)
		if _, ok := b.emitted[key]; ok {
			continue
		}
		b.emitted[key] = struct{}{}
		fresh = append(fresh, node)
	}

	b.logger.Debug("captured feed",
		zap.Int("candidates", len(nodes)),
		zap.Int("new", len(fresh)),
		zap.Int("scrolls", b.scrolls),
	)
	return fresh, nil
}

// nodeKey identifies a rendered node across captures by its link and text
func nodeKey(node domain.FeedNode) uint64 {
	h := xxhash.New()
	h.WriteString(node.Link)
	h.WriteString("\x00")
	h.WriteString(node.Text)
	return h.Sum64()
}

// Restart reloads the feed page, resets the scroll budget and forgets emitted nodes
func (b *BrowserSource) Restart(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = nil
	b.scrolls = 0
	b.emitted = make(map[uint64]struct{})
	if !b.started {
		return nil
	}
	if err := b.run(chromedp.Navigate(b.pageURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to reload feed: %w", err)
	}
	return nil
}

// Close shuts the browser down
func (b *BrowserSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown()
	return nil
}

func (b *BrowserSource) shutdown() {
	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.started = false
	b.cancelTab, b.cancelAlloc = nil, nil
}
