package manager

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/agentfleet/ghtools/internal/gherr"
)

// isBadCredentials reports whether the API rejected the token itself.
func isBadCredentials(err error) bool {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode == http.StatusUnauthorized
	}
	return false
}

// MapAPIError converts a go-github error into a coded error.
// repository is used for not-found messages and may be empty for
// repository-less calls.
func MapAPIError(err error, repository string) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return gherr.RateLimit(rateErr.Rate.Reset.Format(time.RFC3339))
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return gherr.RateLimit("")
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return gherr.Authentication("Invalid GitHub token")
		case http.StatusForbidden:
			return gherr.Permission("Insufficient permissions: " + respErr.Message)
		case http.StatusNotFound:
			if repository != "" {
				return gherr.RepositoryNotFound(repository)
			}
			return gherr.APIError("GitHub API error: %s", respErr.Message)
		case http.StatusUnprocessableEntity:
			return gherr.Validation("Validation error: %s", respErr.Message)
		}
		return gherr.APIError("GitHub API error: %d - %s", respErr.Response.StatusCode, respErr.Message)
	}

	return gherr.APIError("GitHub API error: %v", err)
}
