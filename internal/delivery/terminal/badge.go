// Package terminal renders enrichment results as coloured badges on a terminal.
package terminal

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/flipfinder/backend/internal/domain"
)

// Tier buckets a profit for display
type Tier int

const (
	TierNoData Tier = iota
	TierLoss
	TierLow
	TierGood
	TierBest
)

// Profit boundaries between tiers, in whole currency units
const (
	goodProfitFrom = 20
	bestProfitFrom = 50
)

// TierFor returns the badge tier of a successful result
func TierFor(profit float64) Tier {
	switch {
	case profit < 0:
		return TierLoss
	case profit < goodProfitFrom:
		return TierLow
	case profit < bestProfitFrom:
		return TierGood
	default:
		return TierBest
	}
}

var (
	lossColor       = lipgloss.Color("#e53935")
	lowColor        = lipgloss.Color("#FFC107")
	goodColor       = lipgloss.Color("#8BC34A")
	bestColor       = lipgloss.Color("#2E7D32")
	mutedColor      = lipgloss.Color("#9E9E9E")
	analyzeColor    = lipgloss.Color("#2196F3")
	badgeForeground = lipgloss.Color("#ffffff")
)

// Presenter writes one line per badge. It is safe for concurrent use.
type Presenter struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[Tier]lipgloss.Style
	busy   lipgloss.Style
	title  lipgloss.Style
}

// NewPresenter creates a presenter writing to out. Colours are dropped when out is not a terminal.
func NewPresenter(out io.Writer) *Presenter {
	r := lipgloss.NewRenderer(out)
	badge := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().Background(c).Foreground(badgeForeground).Bold(true).Padding(0, 1)
	}

	return &Presenter{
		out: out,
		styles: map[Tier]lipgloss.Style{
			TierNoData: badge(mutedColor),
			TierLoss:   badge(lossColor),
			TierLow:    badge(lowColor),
			TierGood:   badge(goodColor),
			TierBest:   badge(bestColor),
		},
		busy:  r.NewStyle().Foreground(analyzeColor).Italic(true),
		title: r.NewStyle().Bold(true),
	}
}

// Analyzing shows the in-flight marker for a listing
func (p *Presenter) Analyzing(rec domain.ListingRecord) {
	p.println(fmt.Sprintf("%s %s", p.busy.Render("Analyzing..."), p.title.Render(rec.Title)))
}

// Render replaces the in-flight marker with the result badge. Losses are not shown
// when the user turned negative profits off.
func (p *Presenter) Render(rec domain.ListingRecord, result domain.EnrichmentResult, settings domain.Settings) {
	line, ok := p.Badge(rec, result, settings)
	if !ok {
		return
	}
	p.println(line)
}

// Badge formats the result line; ok is false when nothing should be shown
func (p *Presenter) Badge(rec domain.ListingRecord, result domain.EnrichmentResult, settings domain.Settings) (string, bool) {
	if !result.OK() {
		return fmt.Sprintf("%s %s", p.styles[TierNoData].Render("No data"), p.title.Render(rec.Title)), true
	}

	tier := TierFor(result.Profit)
	if tier == TierLoss && !settings.ShowNegativeProfits {
		return "", false
	}

	profitText := fmt.Sprintf("Profit: $%.0f", result.Profit)
	if tier == TierLoss {
		profitText = fmt.Sprintf("Loss: $%.0f", math.Abs(result.Profit))
	}

	deal := ""
	if result.Profit > 0 && result.Profit >= settings.MinProfitThreshold {
		deal = " *"
	}

	text := fmt.Sprintf("eBay Price: $%.0f | %s (%.1f%%)", result.EstimatedValue, profitText, result.ProfitMarginPct)
	return fmt.Sprintf("%s %s ($%.0f, %d sold)%s",
		p.styles[tier].Render(text),
		p.title.Render(rec.Title),
		rec.Price,
		result.SampleSize,
		deal,
	), true
}

func (p *Presenter) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
