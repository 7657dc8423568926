package verifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"opay/errors"
	"opay/jsonx"
	"opay/logx"
	"opay/types"
)

const (
	syncPath      = "/api/offline-transaction/sync"
	verifyPath    = "/api/offline-transaction/verify"
	publicKeyPath = "/api/auth/public-key"
	healthPath    = "/api/health"
)

// Client talks to the remote verifier. The verifier is authoritative; this
// client only submits and reads accept/reject outcomes.
type Client struct {
	baseURL    string
	tokenPath  string
	httpClient *http.Client
}

type Config struct {
	BaseURL        string
	TokenPath      string
	RequestTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenPath:  cfg.TokenPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// syncResponse is the optional accept-list body. A verifier that guarantees
// all-or-nothing semantics returns a bare 200 with no list.
type syncResponse struct {
	Accepted []string `json:"accepted"`
}

type publicKeyRequest struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

// Sync submits the whole pending batch in one request. The returned slice is
// the per-nonce accept list when the verifier provides one; nil with a nil
// error means the verifier recorded the entire batch.
func (c *Client) Sync(ctx context.Context, batch []*types.TransactionPayload) ([]string, error) {
	body, err := jsonx.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := c.post(ctx, syncPath, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logx.Warn("VERIFIER", "Sync rejected | status=", resp.StatusCode, " body=", string(msg))
		return nil, errors.NewError(errors.ErrCodeSyncRejected, errors.ErrMsgSyncRejected)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	var parsed syncResponse
	if err := jsonx.Unmarshal(respBody, &parsed); err != nil || parsed.Accepted == nil {
		// body without an accept list still means full acceptance
		return nil, nil
	}
	return parsed.Accepted, nil
}

// Verify submits a single payload to the verifier.
func (c *Client) Verify(ctx context.Context, payload *types.TransactionPayload) error {
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := c.post(ctx, verifyPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewError(errors.ErrCodeSyncRejected, errors.ErrMsgSyncRejected)
	}
	return nil
}

// RegisterPublicKey associates a base64 SPKI public key with the
// authenticated user. Invoked once after key generation.
func (c *Client) RegisterPublicKey(ctx context.Context, userID, publicKeyB64 string) error {
	body, err := jsonx.Marshal(&publicKeyRequest{UserID: userID, PublicKey: publicKeyB64})
	if err != nil {
		return fmt.Errorf("failed to encode public key request: %w", err)
	}

	resp, err := c.post(ctx, publicKeyPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public key registration failed with status %d", resp.StatusCode)
	}
	logx.Info("VERIFIER", "Registered public key | user_id=", userID)
	return nil
}

// Health probes the verifier origin, used by the connectivity watcher.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("verifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	token, err := c.bearerToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier request failed: %w", err)
	}
	return resp, nil
}

// bearerToken reads the credential from the token file. An already-expired
// JWT short-circuits to sync_unavailable so the attempt is retried after the
// host application refreshes the token, instead of burning a guaranteed 401.
func (c *Client) bearerToken() (string, error) {
	if c.tokenPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewError(errors.ErrCodeSyncUnavailable, errors.ErrMsgSyncUnavailable)
		}
		return "", fmt.Errorf("could not read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.NewError(errors.ErrCodeSyncUnavailable, errors.ErrMsgSyncUnavailable)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			logx.Warn("VERIFIER", "Bearer token expired, skipping attempt")
			return "", errors.NewError(errors.ErrCodeSyncUnavailable, errors.ErrMsgSyncUnavailable)
		}
	}
	// opaque (non-JWT) tokens are passed through as-is
	return token, nil
}
