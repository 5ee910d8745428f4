// Package manager owns the GitHub session: it resolves a credential,
// builds the API client, verifies the authenticated identity, and
// maps client errors onto the shared taxonomy. Tools reach the API
// exclusively through the manager.
package manager

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/agentfleet/ghtools/internal/access"
	"github.com/agentfleet/ghtools/internal/config"
	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/ghauth"
)

const defaultBaseURL = "https://api.github.com"

// Manager manages GitHub API interactions for one session.
type Manager struct {
	cfg      *config.Config
	resolver *ghauth.Resolver
	appAuth  *ghauth.AppAuth
	allow    *access.AllowList
	limiter  *rate.Limiter

	client *github.Client
	cred   ghauth.Credential

	mu    sync.Mutex
	login string
}

// New creates a manager for the given configuration. The credential
// resolver is injected so tests can swap the subprocess and prompt
// collaborators.
func New(cfg *config.Config, resolver *ghauth.Resolver) *Manager {
	m := &Manager{
		cfg:      cfg,
		resolver: resolver,
		allow:    access.NewAllowList(cfg.Repositories),
	}
	if cfg.GitHubAppID != "" {
		m.appAuth = &ghauth.AppAuth{
			AppID:      cfg.GitHubAppID,
			PrivateKey: cfg.GitHubPrivateKey,
			APIBase:    cfg.BaseURL,
		}
	}
	if cfg.RequestsPerHour > 0 {
		rps := rate.Limit(float64(cfg.RequestsPerHour) / 3600)
		m.limiter = rate.NewLimiter(rps, 10)
	}
	return m
}

// Start resolves a credential and initializes the GitHub client. A
// session without any credential starts successfully in
// unauthenticated mode; an invalid token is surfaced as an
// authentication error, and any other verification failure propagates
// unchanged.
func (m *Manager) Start(ctx context.Context) error {
	log.Printf("[Manager] Starting GitHub session")

	m.mu.Lock()
	m.login = ""
	m.mu.Unlock()

	m.cred = m.resolveCredential(ctx)
	if !m.cred.Found() {
		log.Printf("[Manager] No GitHub credential found. Most operations will fail. " +
			"Configure a token, enable gh CLI auth, or set GITHUB_TOKEN.")
		return nil
	}

	client, err := m.newClient(ctx, m.cred.Token)
	if err != nil {
		return err
	}

	if err := m.limit(ctx); err != nil {
		return err
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		if isBadCredentials(err) {
			log.Printf("[Manager] GitHub authentication failed - invalid token")
			return gherr.Authentication("Invalid GitHub token")
		}
		return fmt.Errorf("failed to verify GitHub credentials: %w", err)
	}

	m.client = client
	m.mu.Lock()
	m.login = user.GetLogin()
	m.mu.Unlock()

	log.Printf("[Manager] Authenticated as: %s (source: %s)", user.GetLogin(), m.cred.Source)
	return nil
}

// Stop tears the session down.
func (m *Manager) Stop() {
	log.Printf("[Manager] Stopping GitHub session")
	m.client = nil
	m.cred = ghauth.Credential{}
	m.mu.Lock()
	m.login = ""
	m.mu.Unlock()
}

// resolveCredential walks the chain: explicit token, App installation
// token, then the resolver's environment/CLI/prompt steps. An App
// failure falls through to the rest of the chain.
func (m *Manager) resolveCredential(ctx context.Context) ghauth.Credential {
	opts := ghauth.Options{
		Token:           m.cfg.Token,
		UseCLIAuth:      m.cfg.UseCLIAuth,
		PromptIfMissing: m.cfg.PromptIfMissing,
	}

	if opts.Token == "" && m.appAuth.Configured() && m.allow.Restricted() {
		repo := m.allow.Repositories()[0]
		cred, err := m.appAuth.InstallationCredential(ctx, repo)
		if err == nil {
			log.Printf("[Manager] Using GitHub App installation token for %s", repo)
			return cred
		}
		log.Printf("[Manager] GitHub App token unavailable: %v", err)
	}

	return m.resolver.Resolve(ctx, opts)
}

// newClient builds a go-github client for the configured endpoint.
func (m *Manager) newClient(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	if m.cfg.BaseURL != defaultBaseURL {
		client, err := github.NewClient(tc).WithEnterpriseURLs(m.cfg.BaseURL, m.cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %s: %w", m.cfg.BaseURL, err)
		}
		return client, nil
	}
	return github.NewClient(tc), nil
}

// Authenticated reports whether the session holds a verified client.
func (m *Manager) Authenticated() bool {
	return m.client != nil
}

// Credential exposes the resolved credential (source inspection only;
// callers must not log the token).
func (m *Manager) Credential() ghauth.Credential {
	return m.cred
}

// AllowList exposes the configured repository allow-list.
func (m *Manager) AllowList() *access.AllowList {
	return m.allow
}

// Client returns the underlying API client, or an authentication
// error when the session is unauthenticated.
func (m *Manager) Client() (*github.Client, error) {
	if m.client == nil {
		return nil, gherr.Authentication("GitHub client not authenticated")
	}
	return m.client, nil
}

// CurrentLogin returns the authenticated username, resolving and
// caching it on first use. Start resets the cache.
func (m *Manager) CurrentLogin(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.login != "" {
		return m.login, nil
	}

	client := m.client
	if client == nil {
		return "", gherr.Authentication("GitHub client not authenticated")
	}

	if err := m.limit(ctx); err != nil {
		return "", err
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", gherr.Authentication(fmt.Sprintf("Failed to resolve authenticated user: %v", err))
	}

	m.login = user.GetLogin()
	return m.login, nil
}

// SplitRepo splits "owner/repo" into its halves.
func SplitRepo(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", gherr.Validation("invalid repository format: %s (expected owner/repo)", repository)
	}
	return parts[0], parts[1], nil
}

// Repository fetches repository metadata, mapping API failures onto
// the shared taxonomy.
func (m *Manager) Repository(ctx context.Context, repository string) (*github.Repository, error) {
	owner, name, err := SplitRepo(repository)
	if err != nil {
		return nil, err
	}

	client, err := m.Client()
	if err != nil {
		return nil, err
	}

	if err := m.limit(ctx); err != nil {
		return nil, err
	}
	repo, _, err := client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, MapAPIError(err, repository)
	}
	return repo, nil
}

// RateLimit reports the core rate-limit window.
func (m *Manager) RateLimit(ctx context.Context) (map[string]any, error) {
	client, err := m.Client()
	if err != nil {
		return map[string]any{"authenticated": false}, nil
	}

	limits, _, err := client.RateLimit.Get(ctx)
	if err != nil {
		return nil, MapAPIError(err, "")
	}

	core := limits.GetCore()
	return map[string]any{
		"authenticated": true,
		"limit":         core.Limit,
		"remaining":     core.Remaining,
		"reset":         core.Reset.Format("2006-01-02T15:04:05Z07:00"),
		"used":          core.Limit - core.Remaining,
	}, nil
}

// Limit blocks until the client-side limiter admits another API call.
// A nil limiter admits immediately.
func (m *Manager) Limit(ctx context.Context) error {
	return m.limit(ctx)
}

func (m *Manager) limit(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}
