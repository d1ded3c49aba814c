package terminal

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flipfinder/backend/internal/domain"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		profit float64
		want   Tier
	}{
		{-15, TierLoss},
		{-0.4, TierLoss},
		{0, TierLow},
		{19, TierLow},
		{20, TierGood},
		{49, TierGood},
		{50, TierBest},
		{400, TierBest},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.profit), "profit %v", tt.profit)
	}
}

func yetiResult() domain.EnrichmentResult {
	return domain.EnrichmentResult{
		EstimatedValue:  90,
		SourcePrice:     50,
		Profit:          40,
		ProfitMarginPct: 80,
		SampleSize:      3,
		MatchedQuery:    "Blue Yeti USB Microphone",
	}
}

func TestPresenter_Badge(t *testing.T) {
	p := NewPresenter(&bytes.Buffer{})
	rec := domain.ListingRecord{Title: "Yeti Mic", Price: 50}
	settings := domain.DefaultSettings()

	t.Run("profitable deal", func(t *testing.T) {
		line, ok := p.Badge(rec, yetiResult(), settings)
		assert.True(t, ok)
		assert.Contains(t, line, "eBay Price: $90 | Profit: $40 (80.0%)")
		assert.Contains(t, line, "Yeti Mic")
		assert.Contains(t, line, "3 sold")
		assert.True(t, strings.HasSuffix(line, " *"))
	})

	t.Run("below threshold is not marked", func(t *testing.T) {
		result := yetiResult()
		result.Profit = 5
		result.ProfitMarginPct = 10

		line, ok := p.Badge(rec, result, settings)
		assert.True(t, ok)
		assert.Contains(t, line, "Profit: $5 (10.0%)")
		assert.False(t, strings.HasSuffix(line, " *"))
	})

	t.Run("loss shown as absolute value", func(t *testing.T) {
		result := yetiResult()
		result.EstimatedValue = 40
		result.Profit = -10
		result.ProfitMarginPct = -20

		line, ok := p.Badge(rec, result, settings)
		assert.True(t, ok)
		assert.Contains(t, line, "Loss: $10 (-20.0%)")
	})

	t.Run("loss hidden when negative profits are off", func(t *testing.T) {
		result := yetiResult()
		result.Profit = -10

		hidden := settings
		hidden.ShowNegativeProfits = false

		_, ok := p.Badge(rec, result, hidden)
		assert.False(t, ok)
	})

	t.Run("failure shows no data", func(t *testing.T) {
		line, ok := p.Badge(rec, domain.EnrichmentResult{Failure: domain.FailureNoMatches}, settings)
		assert.True(t, ok)
		assert.Contains(t, line, "No data")
		assert.NotContains(t, line, "Profit")
	})
}

func TestPresenter_Output(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf)
	rec := domain.ListingRecord{Title: "Yeti Mic", Price: 50}

	p.Analyzing(rec)
	p.Render(rec, yetiResult(), domain.DefaultSettings())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Analyzing...")
	assert.Contains(t, lines[1], "Profit: $40")
}

func TestPresenter_ConcurrentRender(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf)
	rec := domain.ListingRecord{Title: "Yeti Mic", Price: 50}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Render(rec, yetiResult(), domain.DefaultSettings())
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "\n"))
}
