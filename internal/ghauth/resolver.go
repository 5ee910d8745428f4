package ghauth

import (
	"context"
	"log"
	"os"
	"strings"
	"time"
)

// cliTimeout bounds the gh subprocess. The process is killed on
// expiry.
const cliTimeout = 5 * time.Second

// envVars consulted for a token, first non-empty wins.
var envVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// Options control the resolution chain for one session.
type Options struct {
	// Token is an explicitly configured credential. When non-empty it
	// always wins, even if it later turns out to be invalid.
	Token string

	// UseCLIAuth enables the gh CLI fallback (default true).
	UseCLIAuth bool

	// PromptIfMissing enables the interactive prompt fallback
	// (default true).
	PromptIfMissing bool
}

// Resolver walks the credential chain. The subprocess runner and the
// interactive prompt are injected so tests can substitute
// deterministic fakes.
type Resolver struct {
	Runner CommandRunner
	Prompt PromptFunc
}

// NewResolver creates a resolver with the production collaborators.
func NewResolver() *Resolver {
	return &Resolver{
		Runner: &RealCommandRunner{},
		Prompt: TerminalPrompt,
	}
}

// Resolve walks the chain and returns the first credential found.
// "No credential" is a valid, non-exceptional outcome: the returned
// Credential is tagged SourceNone and Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, opts Options) Credential {
	if opts.Token != "" {
		return Credential{Token: opts.Token, Source: SourceExplicit}
	}

	for _, name := range envVars {
		if value := os.Getenv(name); value != "" {
			log.Printf("[Auth] Using token from %s environment variable", name)
			return Credential{Token: value, Source: SourceEnvironment}
		}
	}

	if opts.UseCLIAuth {
		if token, ok := r.fromCLI(ctx); ok {
			log.Printf("[Auth] Using token from GitHub CLI")
			return Credential{Token: token, Source: SourceCLI}
		}
	}

	if opts.PromptIfMissing && r.Prompt != nil {
		if token, ok := r.fromPrompt(); ok {
			return Credential{Token: token, Source: SourceInteractive}
		}
	}

	return Credential{Source: SourceNone}
}

// fromCLI asks the gh CLI for a token. Success is exit code 0 and
// non-empty trimmed stdout. Every failure mode (binary missing,
// non-zero exit, timeout, empty output) is swallowed and reported as
// "not found". A missing credential is expected here, not an error.
func (r *Resolver) fromCLI(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	output, err := r.Runner.Run(ctx, "gh", "auth", "token")
	if err != nil {
		log.Printf("[Auth] GitHub CLI token lookup unavailable: %v", err)
		return "", false
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", false
	}
	return token, true
}

// fromPrompt asks the user interactively. Empty input, end-of-input,
// and interrupts all resolve to "not found".
func (r *Resolver) fromPrompt() (string, bool) {
	input, err := r.Prompt()
	if err != nil {
		log.Printf("[Auth] Interactive prompt unavailable: %v", err)
		return "", false
	}

	token := strings.TrimSpace(input)
	if token == "" {
		return "", false
	}
	return token, true
}
