package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/internal/domain"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	DefaultUsageLimit int
}

// AccountSeed describes an account provisioned at startup
type AccountSeed struct {
	Email           string
	SubscriptionKey string
	Plan            string
	ExpiresAt       time.Time
	UsageLimit      int
}

// Claims are the JWT claims issued on login. Subject is the account ID.
type Claims struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
	jwt.RegisteredClaims
}

// AuthService issues bearer tokens and gates access on subscription and usage
type AuthService struct {
	accounts     domain.AccountRepository
	secret       []byte
	tokenTTL     time.Duration
	defaultLimit int
	now          func() time.Time
	logger       *zap.Logger
}

// NewAuthService creates a new auth service with dependencies
func NewAuthService(accounts domain.AccountRepository, config AuthServiceConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := config.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	limit := config.DefaultUsageLimit
	if limit <= 0 {
		limit = domain.MonthlyAPICallLimit
	}

	return &AuthService{
		accounts:     accounts,
		secret:       []byte(config.JWTSecret),
		tokenTTL:     ttl,
		defaultLimit: limit,
		now:          time.Now,
		logger:       logger.With(zap.String("component", "auth_service")),
	}
}

// HashSubscriptionKey returns the stored form of a subscription key
func HashSubscriptionKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Login verifies a subscription key and issues a token
func (s *AuthService) Login(ctx context.Context, request *domain.LoginRequest) (*domain.LoginResponse, error) {
	if request == nil || request.Email == "" || request.SubscriptionKey == "" {
		return nil, domain.ErrInvalidRequest
	}

	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(request.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	given := HashSubscriptionKey(request.SubscriptionKey)
	if subtle.ConstantTimeCompare([]byte(given), []byte(account.SubscriptionKeyHash)) != 1 {
		return nil, domain.ErrUnauthorized
	}

	if !account.SubscriptionActive(s.now()) {
		return nil, domain.ErrSubscriptionInactive
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", zap.String("account", account.ID), zap.String("plan", account.Plan))

	return &domain.LoginResponse{
		Token: token,
		User: domain.UserInfo{
			Email:     account.Email,
			Plan:      account.Plan,
			ExpiresAt: account.ExpiresAt,
		},
	}, nil
}

// IssueToken signs an HS256 token for the account
func (s *AuthService) IssueToken(account *domain.Account) (string, error) {
	now := s.now()
	claims := Claims{
		Email: account.Email,
		Plan:  account.Plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authorize resolves a bearer token to an account that may make one more call.
// Returns ErrUnauthorized, ErrSubscriptionInactive or ErrQuotaExceeded otherwise.
func (s *AuthService) Authorize(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !account.SubscriptionActive(s.now()) {
		return nil, domain.ErrSubscriptionInactive
	}

	used, err := s.accounts.GetUsage(ctx, account.ID, domain.UsagePeriod(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}
	if used >= s.usageLimit(account) {
		return nil, domain.ErrQuotaExceeded
	}

	return account, nil
}

func (s *AuthService) usageLimit(account *domain.Account) int {
	if account.UsageLimit > 0 {
		return account.UsageLimit
	}
	return s.defaultLimit
}

// SeedAccounts creates or updates the given accounts. Existing accounts keep their ID.
func (s *AuthService) SeedAccounts(ctx context.Context, seeds []AccountSeed) error {
	for _, seed := range seeds {
		email := normalizeEmail(seed.Email)
		if email == "" || seed.SubscriptionKey == "" {
			return fmt.Errorf("%w: seed account needs email and subscription key", domain.ErrInvalidRequest)
		}

		account := &domain.Account{
			ID:                  uuid.NewString(),
			Email:               email,
			SubscriptionKeyHash: HashSubscriptionKey(seed.SubscriptionKey),
			Plan:                seed.Plan,
			ExpiresAt:           seed.ExpiresAt,
			Active:              true,
			UsageLimit:          seed.UsageLimit,
			CreatedAt:           s.now(),
		}

		existing, err := s.accounts.GetByEmail(ctx, email)
		switch {
		case err == nil:
			account.ID = existing.ID
			account.CreatedAt = existing.CreatedAt
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("failed to load account %s: %w", email, err)
		}

		if err := s.accounts.Upsert(ctx, account); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", email, err)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
