// internal/gateway/campay/client.go
package campay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/phone"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Status is the normalized transaction state reported by the gateway.
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusPending    Status = "pending"
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Currency string
	TokenTTL time.Duration
}

type CollectRequest struct {
	Amount            float64
	Phone             string
	Description       string
	ExternalReference string
}

type CollectResult struct {
	Reference string `json:"reference"`
}

type TransactionStatus struct {
	Reference string `json:"reference"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

const tokenCacheKey = "campay:token"

// Client is a thin adapter over the Campay mobile-money HTTP API. It holds
// no business state and never retries on behalf of the caller. All failures
// fail closed with ErrGatewayUnavailable so callers can uniformly treat
// "no gateway" as a failed attempt.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *redis.Client // optional token cache; nil disables caching
	logger *zap.Logger
}

func NewClient(cfg Config, tokens *redis.Client, logger *zap.Logger) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "XAF"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
		logger: logger,
	}
}

// Collect initiates a charge against the subscriber's mobile wallet.
func (c *Client) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"amount":             fmt.Sprintf("%.0f", req.Amount),
		"currency":           c.cfg.Currency,
		"from":               normalized,
		"description":        req.Description,
		"external_reference": req.ExternalReference,
	}

	var result CollectResult
	if err := c.post(ctx, "/collect", body, &result); err != nil {
		return nil, err
	}
	if result.Reference == "" {
		c.logger.Error("campay collect returned no reference",
			zap.String("external_reference", req.ExternalReference))
		return nil, xerrors.ErrGatewayUnavailable
	}
	return &result, nil
}

// Withdraw pays out to the subscriber's mobile wallet.
func (c *Client) Withdraw(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"amount":             fmt.Sprintf("%.0f", req.Amount),
		"currency":           c.cfg.Currency,
		"to":                 normalized,
		"description":        req.Description,
		"external_reference": req.ExternalReference,
	}

	var result CollectResult
	if err := c.post(ctx, "/withdraw", body, &result); err != nil {
		return nil, err
	}
	if result.Reference == "" {
		return nil, xerrors.ErrGatewayUnavailable
	}
	return &result, nil
}

// CheckStatus polls the gateway for the state of a transaction.
func (c *Client) CheckStatus(ctx context.Context, reference string) (*TransactionStatus, error) {
	token, err := c.token(ctx, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/transaction/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("campay status request failed",
			zap.String("reference", reference), zap.Error(err))
		return nil, xerrors.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Stale token: one re-acquisition, then give up.
		if token, err = c.token(ctx, true); err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Token "+token)
		resp2, err := c.http.Do(httpReq)
		if err != nil {
			return nil, xerrors.ErrGatewayUnavailable
		}
		defer resp2.Body.Close()
		resp = resp2
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("campay status returned non-200",
			zap.String("reference", reference), zap.Int("status_code", resp.StatusCode))
		return nil, xerrors.ErrGatewayUnavailable
	}

	var raw struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrGatewayUnavailable, "malformed status response")
	}

	return &TransactionStatus{
		Reference: raw.Reference,
		Status:    normalizeStatus(raw.Status),
		Reason:    raw.Reason,
	}, nil
}

// post sends an authenticated JSON request, re-acquiring the token once on a
// 401 before failing closed.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	token, err := c.token(ctx, false)
	if err != nil {
		return err
	}

	resp, err := c.doPost(ctx, path, token, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if token, err = c.token(ctx, true); err != nil {
			return err
		}
		if resp, err = c.doPost(ctx, path, token, body); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("campay request rejected",
			zap.String("endpoint", path),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", payload))
		return xerrors.ErrGatewayUnavailable
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.ErrGatewayUnavailable, "malformed gateway response")
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, path, token string, body map[string]interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("campay request failed", zap.String("endpoint", path), zap.Error(err))
		return nil, xerrors.ErrGatewayUnavailable
	}
	return resp, nil
}

// token returns a bearer token, from cache when possible. force skips the
// cache. Fails closed so callers see ErrGatewayUnavailable, never a panic
// or a raw auth error.
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	if c.tokens != nil && !force {
		if cached, err := c.tokens.Get(ctx, tokenCacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("campay token request failed", zap.Error(err))
		return "", xerrors.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Log enough to debug credential misconfiguration without leaking
		// the credentials themselves.
		c.logger.Error("campay token request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("username", redact(c.cfg.Username)))
		return "", xerrors.ErrGatewayUnavailable
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Token == "" {
		return "", xerrors.ErrGatewayUnavailable
	}

	if c.tokens != nil {
		if err := c.tokens.Set(ctx, tokenCacheKey, result.Token, c.cfg.TokenTTL).Err(); err != nil {
			c.logger.Warn("failed to cache campay token", zap.Error(err))
		}
	}

	return result.Token, nil
}

func normalizeStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED":
		return StatusSuccessful
	case "FAILED":
		return StatusFailed
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	default:
		return StatusPending
	}
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
