// Package webhook validates inbound GitHub webhook deliveries and
// dispatches issue events to the project board.
package webhook

// Payload is the decoded webhook body. Only the fields this service acts
// on are mapped; everything else in GitHub's payload is ignored.
type Payload struct {
	Action string `json:"action"`
	Issue  struct {
		NodeID string `json:"node_id"`
		Number int    `json:"number"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// EventAction is the closed set of event/action combinations the service
// dispatches on. Anything outside the set collapses to ActionOther so new
// cases must be added here, not as string comparisons in handlers.
type EventAction int

const (
	ActionOther EventAction = iota
	ActionIssuesOpened
	ActionIssuesReopened
)

// ParseEventAction classifies the event-name header and payload action.
func ParseEventAction(event, action string) EventAction {
	if event != "issues" {
		return ActionOther
	}
	switch action {
	case "opened":
		return ActionIssuesOpened
	case "reopened":
		return ActionIssuesReopened
	default:
		return ActionOther
	}
}

// Result is the outcome of handling one delivery. GitHub redelivers on
// non-2xx responses, so the mapping to status codes decides what gets
// retried: client-side problems return 4xx (never retried), upstream
// failures return 502 (retried by GitHub).
type Result int

const (
	ResultHandled Result = iota
	ResultIgnored
	ResultBadRequest
	ResultUnauthorized
	ResultUpstreamError
)

// StatusCode maps the result to the HTTP status returned to GitHub.
func (r Result) StatusCode() int {
	switch r {
	case ResultHandled, ResultIgnored:
		return 200
	case ResultBadRequest:
		return 400
	case ResultUnauthorized:
		return 401
	default:
		return 502
	}
}

func (r Result) String() string {
	switch r {
	case ResultHandled:
		return "handled"
	case ResultIgnored:
		return "ignored"
	case ResultBadRequest:
		return "bad_request"
	case ResultUnauthorized:
		return "unauthorized"
	default:
		return "upstream_error"
	}
}
