package manager

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/agentfleet/ghtools/internal/config"
	"github.com/agentfleet/ghtools/internal/gherr"
	"github.com/agentfleet/ghtools/internal/ghauth"
)

// newAPIServer serves a fake GitHub REST API. The manager talks to it
// through the enterprise base URL override, so handlers see paths
// prefixed with /api/v3.
func newAPIServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api/v3")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func noChainResolver() *ghauth.Resolver {
	return &ghauth.Resolver{Runner: ghauth.NewMockCommandRunner()}
}

func testConfig(token, baseURL string) *config.Config {
	return &config.Config{
		Port:    8000,
		Token:   token,
		BaseURL: baseURL,
	}
}

func TestStartAuthenticates(t *testing.T) {
	var userCalls int32
	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			atomic.AddInt32(&userCalls, 1)
			if got := r.Header.Get("Authorization"); got != "Bearer ghp_test" {
				t.Errorf("Authorization = %q, want bearer token", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"login":"octocat"}`))
			return
		}
		http.NotFound(w, r)
	})

	m := New(testConfig("ghp_test", server.URL), noChainResolver())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	if !m.Authenticated() {
		t.Error("Authenticated() = false after successful start")
	}
	if m.Credential().Source != ghauth.SourceExplicit {
		t.Errorf("credential source = %s, want explicit", m.Credential().Source)
	}

	// Start already resolved the login; no extra API call expected.
	login, err := m.CurrentLogin(context.Background())
	if err != nil {
		t.Fatalf("CurrentLogin failed: %v", err)
	}
	if login != "octocat" {
		t.Errorf("CurrentLogin = %s, want octocat", login)
	}
	if n := atomic.LoadInt32(&userCalls); n != 1 {
		t.Errorf("GET /user called %d times, want 1", n)
	}
}

func TestStartInvalidToken(t *testing.T) {
	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})

	m := New(testConfig("ghp_bad", server.URL), noChainResolver())
	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with rejected token")
	}

	var coded *gherr.Error
	if !errors.As(err, &coded) || coded.Code != gherr.CodeAuthentication {
		t.Errorf("error = %v, want AUTHENTICATION_ERROR", err)
	}
	if m.Authenticated() {
		t.Error("Authenticated() = true after failed start")
	}
}

func TestStartServerErrorPropagates(t *testing.T) {
	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	m := New(testConfig("ghp_test", server.URL), noChainResolver())
	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded despite server error")
	}

	var coded *gherr.Error
	if errors.As(err, &coded) && coded.Code == gherr.CodeAuthentication {
		t.Errorf("500 must not be reported as an authentication error: %v", err)
	}
}

func clearTokenEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestStartUnauthenticatedMode(t *testing.T) {
	clearTokenEnv(t)
	m := New(testConfig("", "https://api.github.com"), noChainResolver())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed without credential: %v", err)
	}

	if m.Authenticated() {
		t.Error("Authenticated() = true without credential")
	}
	if m.Credential().Source != ghauth.SourceNone {
		t.Errorf("credential source = %s, want none", m.Credential().Source)
	}

	if _, err := m.Client(); err == nil {
		t.Error("Client() succeeded without credential")
	} else if gherr.From(err).Code != gherr.CodeAuthentication {
		t.Errorf("Client() error code = %s, want AUTHENTICATION_ERROR", gherr.From(err).Code)
	}

	if _, err := m.CurrentLogin(context.Background()); err == nil {
		t.Error("CurrentLogin succeeded without credential")
	}
}

func TestRepository(t *testing.T) {
	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			w.Write([]byte(`{"login":"octocat"}`))
		case "/repos/octocat/hello-world":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"full_name":"octocat/hello-world","default_branch":"main"}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		}
	})

	m := New(testConfig("ghp_test", server.URL), noChainResolver())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	repo, err := m.Repository(context.Background(), "octocat/hello-world")
	if err != nil {
		t.Fatalf("Repository failed: %v", err)
	}
	if repo.GetDefaultBranch() != "main" {
		t.Errorf("default branch = %s, want main", repo.GetDefaultBranch())
	}

	if _, err := m.Repository(context.Background(), "octocat/missing"); err == nil {
		t.Error("Repository succeeded for missing repo")
	} else if gherr.From(err).Code != gherr.CodeRepositoryNotFound {
		t.Errorf("error code = %s, want REPOSITORY_NOT_FOUND", gherr.From(err).Code)
	}

	if _, err := m.Repository(context.Background(), "not-a-repo"); err == nil {
		t.Error("Repository accepted malformed identifier")
	} else if gherr.From(err).Code != gherr.CodeValidation {
		t.Errorf("error code = %s, want VALIDATION_ERROR", gherr.From(err).Code)
	}
}

func TestRateLimitUnauthenticated(t *testing.T) {
	clearTokenEnv(t)
	m := New(testConfig("", "https://api.github.com"), noChainResolver())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	info, err := m.RateLimit(context.Background())
	if err != nil {
		t.Fatalf("RateLimit failed: %v", err)
	}
	if info["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", info["authenticated"])
	}
}

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		name       string
		repository string
		wantOwner  string
		wantName   string
		wantErr    bool
	}{
		{name: "valid", repository: "octocat/hello-world", wantOwner: "octocat", wantName: "hello-world"},
		{name: "missing slash", repository: "octocat", wantErr: true},
		{name: "too many segments", repository: "a/b/c", wantErr: true},
		{name: "empty owner", repository: "/repo", wantErr: true},
		{name: "empty name", repository: "owner/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, name, err := SplitRepo(tt.repository)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitRepo error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if gherr.From(err).Code != gherr.CodeValidation {
					t.Errorf("error code = %s, want VALIDATION_ERROR", gherr.From(err).Code)
				}
				return
			}
			if owner != tt.wantOwner || name != tt.wantName {
				t.Errorf("SplitRepo = %s, %s, want %s, %s", owner, name, tt.wantOwner, tt.wantName)
			}
		})
	}
}
