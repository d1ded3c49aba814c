package domain

import "time"

// Defaults applied when the session store has no saved settings
const (
	DefaultMinProfitThreshold = 10.0
	MonthlyAPICallLimit       = 1000
	APIUsageWarningAt         = 900
)

// Credentials used by the scanner to reach remote services
type Credentials struct {
	ProxyURL   string `json:"proxyUrl,omitempty" validate:"omitempty,url"`
	ProxyToken string `json:"proxyToken,omitempty"`
	LLMAPIKey  string `json:"llmApiKey,omitempty"`
}

// Settings are the user-controlled scanner options
type Settings struct {
	Enabled             bool        `json:"enabled"`
	MinProfitThreshold  float64     `json:"minProfitThreshold" validate:"gte=0"`
	ShowNegativeProfits bool        `json:"showNegativeProfits"`
	Credentials         Credentials `json:"credentials"`
}

// DefaultSettings returns the settings a fresh install starts with
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		MinProfitThreshold:  DefaultMinProfitThreshold,
		ShowNegativeProfits: true,
	}
}

// Stats are the running counters shown to the user
type Stats struct {
	ListingsAnalyzed     int       `json:"productsAnalyzed"`
	ProfitableDeals      int       `json:"profitableDeals"`
	TotalPotentialProfit float64   `json:"totalPotentialProfit"`
	APIUsageCount        int       `json:"apiUsageCount"`
	LastAPICall          time.Time `json:"lastApiCall,omitempty"`
}

// NearUsageLimit reports whether the local API usage counter is close to the monthly limit
func (s Stats) NearUsageLimit() bool {
	return s.APIUsageCount > APIUsageWarningAt
}
