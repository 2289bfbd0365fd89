package github

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/config"
	"github.com/GlueOps/storypoints/internal/metrics"
)

const apiVersion = "2022-11-28"

// Client talks to the GitHub API on behalf of the App installation.
type Client struct {
	appID          string
	privateKey     string
	installationID string
	org            string
	projectNumber  int
	baseURL        string
	httpClient     *http.Client
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewClient builds a client from the startup configuration. All outbound
// calls share one HTTP client with a bounded timeout: GitHub gives webhook
// receivers a short response budget, so nothing here may block long.
func NewClient(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		appID:          cfg.AppID,
		privateKey:     cfg.PrivateKey,
		installationID: cfg.InstallationID,
		org:            cfg.OrgName,
		projectNumber:  cfg.ProjectNumber,
		baseURL:        cfg.APIBaseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
		metrics:        m,
	}
}

// AppJWT signs a short-lived JWT identifying the App itself. GitHub caps
// the expiry at ten minutes; issued-at is backdated a minute to absorb
// clock skew.
func (c *Client) AppJWT() (string, error) {
	block, _ := pem.Decode([]byte(c.privateKey))
	if block == nil {
		return "", &AuthError{Op: "parse private key", Err: fmt.Errorf("no PEM block found")}
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", &AuthError{Op: "parse private key", Err: err}
	}

	claims := jwt.RegisteredClaims{
		Issuer:    c.appID,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(9 * time.Minute)),
	}

	signedJWT, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", &AuthError{Op: "sign jwt", Err: err}
	}
	return signedJWT, nil
}

// InstallationToken exchanges an App JWT for an installation access token.
// One attempt, no caching: failures surface to the caller, and GitHub's own
// redelivery covers transient outages.
func (c *Client) InstallationToken(ctx context.Context) (Token, error) {
	signedJWT, err := c.AppJWT()
	if err != nil {
		return Token{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", c.baseURL, c.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Token{}, &AuthError{Op: "token exchange", Err: err}
	}
	setHeaders(req, signedJWT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordGitHubRequest("installation_token", false)
		return Token{}, &AuthError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.metrics.RecordGitHubRequest("installation_token", false)
		return Token{}, &AuthError{Op: "token exchange", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		c.metrics.RecordGitHubRequest("installation_token", false)
		return Token{}, &AuthError{Op: "decode token response", Err: err}
	}

	c.metrics.RecordGitHubRequest("installation_token", true)
	return token, nil
}

func setHeaders(req *http.Request, bearer string) {
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}
