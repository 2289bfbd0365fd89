// Package github provides the outbound GitHub API client: App
// authentication, Projects V2 GraphQL calls, and webhook delivery
// redelivery.
package github

import (
	"fmt"
	"strings"
	"time"
)

// Token is a short-lived installation access token. It is fetched fresh for
// every webhook that needs one; tokens are valid for about an hour but the
// service deliberately keeps no cross-request state.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Delivery is one entry from the App's webhook delivery log.
type Delivery struct {
	ID          int64     `json:"id"`
	GUID        string    `json:"guid"`
	StatusCode  int       `json:"status_code"`
	Redelivery  bool      `json:"redelivery"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// AuthError reports a failure to authenticate as the GitHub App, either
// locally (bad key, signing failure) or upstream (token exchange rejected).
// Upstream failures carry the status code and response body for diagnostics.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github auth: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("github auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// MutationError reports application-level errors returned in a GraphQL
// response body. The HTTP status of such a response is usually 200.
type MutationError struct {
	Op       string
	Messages []string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("github graphql: %s: %s", e.Op, strings.Join(e.Messages, "; "))
}

// alreadyInProject reports whether every GraphQL error says the item is
// already on the board. Reopened-issue webhooks can be redelivered, so this
// case counts as success.
func (e *MutationError) alreadyInProject() bool {
	if len(e.Messages) == 0 {
		return false
	}
	for _, msg := range e.Messages {
		if !strings.Contains(strings.ToLower(msg), "already exists") {
			return false
		}
	}
	return true
}
