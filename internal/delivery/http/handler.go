package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

// ProxyUsecase is the set of forwarded operations the handlers expose
type ProxyUsecase interface {
	SearchSold(ctx context.Context, account *domain.Account, request *domain.SearchRequest) ([]domain.SoldItem, error)
	EnhanceTitle(ctx context.Context, account *domain.Account, request *domain.EnhanceTitleRequest) (*string, error)
	AnalyzeImage(ctx context.Context, account *domain.Account, request *domain.AnalyzeImageRequest) (*string, error)
}

// AuthUsecase issues and checks bearer tokens
type AuthUsecase interface {
	Login(ctx context.Context, request *domain.LoginRequest) (*domain.LoginResponse, error)
	Authorize(ctx context.Context, token string) (*domain.Account, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	proxy  ProxyUsecase
	auth   AuthUsecase
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(proxy ProxyUsecase, auth AuthUsecase, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		proxy:  proxy,
		auth:   auth,
		logger: logger.With(zap.String("component", "http_handler")),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "flipfinder-proxy",
		"version": "1.0.0",
	})
}

// Login exchanges an email and subscription key for a bearer token
func (h *Handler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: email and subscriptionKey are required"})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Search handles sold-items search requests
func (h *Handler) Search(c *gin.Context) {
	var req domain.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: query is required"})
		return
	}

	items, err := h.proxy.SearchSold(c.Request.Context(), accountFrom(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.SearchResponse{SoldItems: items})
}

// EnhanceTitle handles title enhancement requests
func (h *Handler) EnhanceTitle(c *gin.Context) {
	var req domain.EnhanceTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: title is required"})
		return
	}

	enhanced, err := h.proxy.EnhanceTitle(c.Request.Context(), accountFrom(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.EnhanceTitleResponse{EnhancedTitle: enhanced})
}

// AnalyzeImage handles image analysis requests
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req domain.AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: a valid imageUrl is required"})
		return
	}

	name, err := h.proxy.AnalyzeImage(c.Request.Context(), accountFrom(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.AnalyzeImageResponse{ProductName: name})
}

// writeError maps domain errors to status codes; anything unknown is a 500
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing credentials"})
	case errors.Is(err, domain.ErrSubscriptionInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "Subscription expired or inactive"})
	case errors.Is(err, domain.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Monthly API usage limit exceeded"})
	case errors.Is(err, domain.ErrUpstreamFailure):
		h.logger.Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upstream service temporarily unavailable"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
