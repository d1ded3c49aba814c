package domain

import "time"

// Account is a subscriber of the proxy service
type Account struct {
	ID                  string    `json:"id" bson:"_id"`
	Email               string    `json:"email" bson:"email"`
	SubscriptionKeyHash string    `json:"-" bson:"subscription_key_hash"`
	Plan                string    `json:"plan" bson:"plan"`
	ExpiresAt           time.Time `json:"expiresAt" bson:"expires_at"`
	Active              bool      `json:"active" bson:"active"`
	UsageLimit          int       `json:"usageLimit" bson:"usage_limit"`
	CreatedAt           time.Time `json:"createdAt" bson:"created_at"`
}

// SubscriptionActive reports whether the account may use the proxy at the given time
func (a *Account) SubscriptionActive(now time.Time) bool {
	return a.Active && now.Before(a.ExpiresAt)
}

// Operation names used for usage tracking
const (
	OperationSearch       = "ebay_search"
	OperationEnhanceTitle = "ai_enhance_title"
	OperationAnalyzeImage = "ai_analyze_image"
)

// UsagePeriod returns the calendar-month bucket usage is counted in
func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// LoginRequest represents the subscription login request
type LoginRequest struct {
	Email           string `json:"email" binding:"required,email"`
	SubscriptionKey string `json:"subscriptionKey" binding:"required"`
}

// UserInfo is the public view of an account returned on login
type UserInfo struct {
	Email     string    `json:"email"`
	Plan      string    `json:"plan"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}
