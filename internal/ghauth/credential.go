// Package ghauth resolves the GitHub credential for a session. The
// resolution chain tries, in order: explicit configuration, a GitHub
// App installation token, the GITHUB_TOKEN/GH_TOKEN environment
// variables, the gh CLI, and finally an interactive prompt. Every
// outcome carries the source that produced it so callers (and tests)
// can see which step won.
package ghauth

// Source identifies which step of the resolution chain produced a
// credential.
type Source string

const (
	SourceExplicit    Source = "explicit"
	SourceApp         Source = "app"
	SourceEnvironment Source = "environment"
	SourceCLI         Source = "cli"
	SourceInteractive Source = "interactive"
	SourceNone        Source = "none"
)

// Credential is a resolved bearer token plus its origin. The zero
// value means "no credential" (Source == ""), but resolution always
// returns an explicit SourceNone in that case. Token values must never
// be logged or persisted.
type Credential struct {
	Token  string
	Source Source
}

// Found reports whether the credential carries a usable token.
func (c Credential) Found() bool {
	return c.Token != ""
}
