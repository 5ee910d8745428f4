package ghauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block))
}

func TestAppAuthConfigured(t *testing.T) {
	tests := []struct {
		name string
		auth *AppAuth
		want bool
	}{
		{name: "nil receiver", auth: nil, want: false},
		{name: "empty", auth: &AppAuth{}, want: false},
		{name: "app id only", auth: &AppAuth{AppID: "123"}, want: false},
		{name: "key only", auth: &AppAuth{PrivateKey: "pem"}, want: false},
		{name: "both set", auth: &AppAuth{AppID: "123", PrivateKey: "pem"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.auth.Configured())
		})
	}
}

func TestInstallationCredential(t *testing.T) {
	var sawAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = append(sawAuth, r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/octocat/hello-world/installation":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": 42}`))
		case r.Method == http.MethodPost && r.URL.Path == "/app/installations/42/access_tokens":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"token": "ghs_installation"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	auth := &AppAuth{
		AppID:      "123456",
		PrivateKey: testPrivateKeyPEM(t),
		APIBase:    server.URL,
		HTTPClient: server.Client(),
	}

	cred, err := auth.InstallationCredential(context.Background(), "octocat/hello-world")
	require.NoError(t, err)

	assert.Equal(t, SourceApp, cred.Source)
	assert.Equal(t, "ghs_installation", cred.Token)
	require.Len(t, sawAuth, 2)
	for _, header := range sawAuth {
		assert.True(t, strings.HasPrefix(header, "Bearer "), "requests must carry the App JWT")
	}
}

func TestInstallationCredentialErrors(t *testing.T) {
	pemKey := testPrivateKeyPEM(t)

	t.Run("invalid repo format", func(t *testing.T) {
		auth := &AppAuth{AppID: "123456", PrivateKey: pemKey}
		_, err := auth.InstallationCredential(context.Background(), "not-a-repo")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid repo format")
	})

	t.Run("malformed private key", func(t *testing.T) {
		auth := &AppAuth{AppID: "123456", PrivateKey: "not a pem"}
		_, err := auth.InstallationCredential(context.Background(), "octocat/hello-world")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse private key")
	})

	t.Run("non-numeric app id", func(t *testing.T) {
		auth := &AppAuth{AppID: "abc", PrivateKey: pemKey}
		_, err := auth.InstallationCredential(context.Background(), "octocat/hello-world")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid app ID")
	})

	t.Run("app not installed on repo", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		auth := &AppAuth{
			AppID:      "123456",
			PrivateKey: pemKey,
			APIBase:    server.URL,
			HTTPClient: server.Client(),
		}
		_, err := auth.InstallationCredential(context.Background(), "octocat/hello-world")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get installation")
	})
}
