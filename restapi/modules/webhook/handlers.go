package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/metrics"
	"github.com/GlueOps/storypoints/restapi/modules/github"
)

// ProjectClient is the slice of the GitHub client the dispatcher needs.
type ProjectClient interface {
	InstallationToken(ctx context.Context) (github.Token, error)
	AddIssueToProject(ctx context.Context, token, projectNodeID, issueNodeID string) (string, error)
}

// Service holds the dependencies for webhook handling. ProjectNodeID is
// resolved once at startup; Secret may be empty, which disables signature
// verification.
type Service struct {
	Client        ProjectClient
	ProjectNodeID string
	Secret        string
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Handle runs the validate, authenticate, mutate chain for one delivery.
// Each delivery is independent: a fresh installation token is fetched per
// matching event and no state survives the request.
func (s *Service) Handle(ctx context.Context, event, signature string, body []byte) Result {
	if s.Secret != "" && !verifySignature(body, signature, s.Secret) {
		s.Logger.Warn("webhook signature verification failed", zap.String("event", event))
		return ResultUnauthorized
	}

	// Events this service does not understand are acknowledged with 200 so
	// GitHub does not count them as failed deliveries.
	if event != "issues" {
		return ResultIgnored
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.Logger.Warn("malformed webhook payload", zap.Error(err))
		return ResultBadRequest
	}

	switch ParseEventAction(event, payload.Action) {
	case ActionIssuesOpened, ActionIssuesReopened:
	default:
		return ResultIgnored
	}

	if payload.Issue.NodeID == "" {
		s.Logger.Warn("issues event without issue node_id",
			zap.String("action", payload.Action),
			zap.String("repository", payload.Repository.FullName))
		return ResultBadRequest
	}

	s.Logger.Info("processing issue event",
		zap.String("action", payload.Action),
		zap.String("issue_node_id", payload.Issue.NodeID),
		zap.Int("issue_number", payload.Issue.Number),
		zap.String("repository", payload.Repository.FullName))

	token, err := s.Client.InstallationToken(ctx)
	if err != nil {
		s.Logger.Error("failed to obtain installation token", zap.Error(err))
		return ResultUpstreamError
	}

	itemID, err := s.Client.AddIssueToProject(ctx, token.Value, s.ProjectNodeID, payload.Issue.NodeID)
	if err != nil {
		s.Logger.Error("failed to add issue to project",
			zap.String("issue_node_id", payload.Issue.NodeID),
			zap.Error(err))
		return ResultUpstreamError
	}

	s.Logger.Info("issue added to project",
		zap.String("issue_node_id", payload.Issue.NodeID),
		zap.String("item_id", itemID))
	return ResultHandled
}

// Receive is the POST /v1/ handler.
func Receive(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		event := c.Get("X-GitHub-Event")
		svc.Metrics.WebhooksReceived.WithLabelValues(event).Inc()

		result := svc.Handle(c.UserContext(), event, c.Get("X-Hub-Signature-256"), c.Body())
		svc.Metrics.WebhooksHandled.WithLabelValues(result.String()).Inc()

		switch result {
		case ResultHandled:
			return c.JSON(fiber.Map{"message": "Issue added to project."})
		case ResultIgnored:
			return c.JSON(fiber.Map{"message": "No action taken."})
		default:
			return c.Status(result.StatusCode()).JSON(fiber.Map{"message": result.String()})
		}
	}
}

// verifySignature checks the X-Hub-Signature-256 header: an HMAC SHA-256 of
// the raw body keyed with the shared webhook secret.
func verifySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
