package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

// TokenSource returns the bearer token to send; it is read on every request
type TokenSource func() string

// Client calls the FlipFinder proxy on behalf of the scanner
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
	logger     *zap.Logger
}

// NewClient creates a proxy client. A nil token source sends no Authorization header.
func NewClient(baseURL string, token TokenSource, logger *zap.Logger) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger.With(zap.String("component", "proxy_client")),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// SearchSold implements domain.SoldItemSearcher
func (c *Client) SearchSold(ctx context.Context, query string, limit int) ([]domain.SoldItem, error) {
	var resp domain.SearchResponse
	if err := c.post(ctx, "/api/search", domain.SearchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	if resp.SoldItems == nil {
		return []domain.SoldItem{}, nil
	}
	return resp.SoldItems, nil
}

// EnhanceTitle implements domain.TitleEnhancer; a null answer is returned as ""
func (c *Client) EnhanceTitle(ctx context.Context, title string) (string, error) {
	var resp domain.EnhanceTitleResponse
	if err := c.post(ctx, "/api/enhance-title", domain.EnhanceTitleRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	if resp.EnhancedTitle == nil {
		return "", nil
	}
	return *resp.EnhancedTitle, nil
}

// AnalyzeImage implements domain.ImageAnalyzer; a null answer is returned as ""
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string) (string, error) {
	var resp domain.AnalyzeImageResponse
	if err := c.post(ctx, "/api/analyze-image", domain.AnalyzeImageRequest{ImageURL: imageURL}, &resp); err != nil {
		return "", err
	}
	if resp.ProductName == nil {
		return "", nil
	}
	return *resp.ProductName, nil
}

// Login exchanges subscription credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, subscriptionKey string) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	req := domain.LoginRequest{Email: email, SubscriptionKey: subscriptionKey}
	if err := c.post(ctx, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", domain.ErrNetworkFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp.StatusCode, resp.Header.Get("Retry-After") != "", data)
		c.logger.Debug("proxy request failed", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Error(err))
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstreamFailure, err)
	}
	return nil
}

// statusError maps proxy status codes back onto the domain sentinels.
// A 429 with Retry-After is the per-client rate limit, not the account quota.
func statusError(status int, retryAfter bool, body []byte) error {
	var sentinel error
	switch status {
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidRequest
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = domain.ErrSubscriptionInactive
	case http.StatusTooManyRequests:
		sentinel = domain.ErrQuotaExceeded
		if retryAfter {
			sentinel = domain.ErrRateLimited
		}
	default:
		sentinel = domain.ErrUpstreamFailure
	}

	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("%w: %s", sentinel, e.Error)
	}
	return fmt.Errorf("%w: status %d", sentinel, status)
}
