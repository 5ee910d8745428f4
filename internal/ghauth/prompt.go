package ghauth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptFunc asks the user for a token with echo disabled. It returns
// the entered text (not yet trimmed) or an error; end-of-input and
// interrupts are reported as errors and treated by the resolver as "no
// credential".
type PromptFunc func() (string, error)

// TerminalPrompt reads a token from the controlling terminal without
// echoing it. Returns an error when stdin is not a terminal.
func TerminalPrompt() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "GitHub personal access token (input hidden): ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}

	return strings.TrimSpace(string(raw)), nil
}
