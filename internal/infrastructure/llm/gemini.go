package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/flipfinder/backend/internal/domain"
)

const (
	maxImageBytes = 10 << 20

	enhanceMaxTokens  = 50
	imageMaxTokens    = 100
	classifyMaxTokens = 10
)

// generator is the part of the genai models API this package uses
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds language model configuration
type Config struct {
	APIKey      string
	TextModel   string
	VisionModel string
}

// Client implements title enhancement, image analysis and resellability
// classification on top of the Gemini API.
type Client struct {
	models      generator
	textModel   string
	visionModel string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a Gemini-backed client
func NewClient(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newClient(gc.Models, config, logger), nil
}

func newClient(models generator, config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TextModel == "" {
		config.TextModel = "gemini-2.0-flash-lite"
	}
	if config.VisionModel == "" {
		config.VisionModel = "gemini-2.0-flash"
	}

	return &Client{
		models:      models,
		textModel:   config.TextModel,
		visionModel: config.VisionModel,
		httpClient:  newImageHTTPClient(),
		logger:      logger.With(zap.String("component", "llm")),
	}
}

// EnhanceTitle returns a more specific product name, or "" when the title is
// already sufficient or too vague to improve.
func (c *Client) EnhanceTitle(ctx context.Context, title string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(enhanceTitlePrompt(title), genai.RoleUser),
	}

	answer, err := c.generate(ctx, c.textModel, contents, enhanceMaxTokens)
	if err != nil {
		return "", err
	}

	answer = strings.Trim(answer, "\"' .")
	switch strings.ToUpper(answer) {
	case answerSufficient, answerTooVague, "":
		return "", nil
	}
	return answer, nil
}

// AnalyzeImage downloads the image and asks the vision model for a product name
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string) (string, error) {
	data, mimeType, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analyzeImagePrompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	return c.generate(ctx, c.visionModel, contents, imageMaxTokens)
}

// ClassifyResellable returns the model's raw YES/NO answer for the title
func (c *Client) ClassifyResellable(ctx context.Context, title string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(classifyPrompt(title), genai.RoleUser),
	}
	return c.generate(ctx, c.textModel, contents, classifyMaxTokens)
}

func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, maxTokens int32) (string, error) {
	resp, err := c.models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		c.logger.Warn("generate content failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty model response", domain.ErrUpstreamFailure)
	}
	return strings.TrimSpace(resp.Text()), nil
}

var errBlockedAddress = errors.New("address not allowed")

// newImageHTTPClient returns a client that only dials public addresses. The check
// runs on every dial, so redirects to internal hosts are refused too.
func newImageHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: checkDialAddress,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// checkDialAddress rejects loopback, private, link-local and other non-public IPs
func checkDialAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	ip = ip.Unmap()

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

// fetchImage downloads a listing image, capped at maxImageBytes
func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: image URL must be http or https", domain.ErrInvalidRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid image URL: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("User-Agent", "FlipFinder/1.0")

	resp, err := c.httpClient.Do(req)
	if errors.Is(err, errBlockedAddress) {
		c.logger.Warn("refused image fetch", zap.String("url", imageURL), zap.Error(err))
		return nil, "", fmt.Errorf("%w: image host not allowed", domain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetching image: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: image fetch status %d", domain.ErrUpstreamFailure, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading image: %v", domain.ErrUpstreamFailure, err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", domain.ErrInvalidRequest, maxImageBytes)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: not an image (%s)", domain.ErrInvalidRequest, mimeType)
	}
	return data, mimeType, nil
}
