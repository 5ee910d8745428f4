package ghauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AppAuth mints installation tokens for a GitHub App. When configured,
// it participates in the credential chain right after an explicit
// token: the session borrows the installation that covers the first
// allow-listed repository.
type AppAuth struct {
	AppID      string
	PrivateKey string

	// APIBase overrides the REST endpoint, for GitHub Enterprise.
	// Defaults to https://api.github.com.
	APIBase string

	// HTTPClient is swappable for tests; defaults to a 10s-timeout
	// client.
	HTTPClient *http.Client
}

// Configured reports whether App credentials are present.
func (a *AppAuth) Configured() bool {
	return a != nil && a.AppID != "" && a.PrivateKey != ""
}

// InstallationCredential resolves an installation access token for the
// given repository ("owner/repo") and wraps it as a chain credential.
func (a *AppAuth) InstallationCredential(ctx context.Context, repo string) (Credential, error) {
	token, err := a.installationToken(ctx, repo)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, Source: SourceApp}, nil
}

// generateJWT creates the short-lived App JWT used to talk to the
// installations API.
func (a *AppAuth) generateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, nil
}

func (a *AppAuth) installationToken(ctx context.Context, repo string) (string, error) {
	jwtToken, err := a.generateJWT()
	if err != nil {
		return "", err
	}

	installationID, err := a.installationID(ctx, jwtToken, repo)
	if err != nil {
		return "", err
	}

	return a.accessToken(ctx, jwtToken, installationID)
}

func (a *AppAuth) installationID(ctx context.Context, jwtToken, repo string) (int64, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid repo format: %s (expected owner/repo)", repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/installation", a.apiBase(), parts[0], parts[1])
	var result struct {
		ID int64 `json:"id"`
	}
	if err := a.doJSON(ctx, http.MethodGet, url, jwtToken, http.StatusOK, &result); err != nil {
		return 0, fmt.Errorf("failed to get installation: %w", err)
	}

	return result.ID, nil
}

func (a *AppAuth) accessToken(ctx context.Context, jwtToken string, installationID int64) (string, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.apiBase(), installationID)
	var result struct {
		Token string `json:"token"`
	}
	if err := a.doJSON(ctx, http.MethodPost, url, jwtToken, http.StatusCreated, &result); err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	return result.Token, nil
}

func (a *AppAuth) doJSON(ctx context.Context, method, url, jwtToken string, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (a *AppAuth) apiBase() string {
	if a.APIBase != "" {
		return strings.TrimSuffix(a.APIBase, "/")
	}
	return "https://api.github.com"
}

func (a *AppAuth) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
