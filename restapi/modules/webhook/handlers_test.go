package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/metrics"
	"github.com/GlueOps/storypoints/restapi/modules/github"
)

type fakeClient struct {
	tokenErr   error
	addErr     error
	tokenCalls int
	addCalls   int
	gotProject string
	gotIssue   string
}

func (f *fakeClient) InstallationToken(_ context.Context) (github.Token, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return github.Token{}, f.tokenErr
	}
	return github.Token{Value: "ghs_fake", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeClient) AddIssueToProject(_ context.Context, _, projectNodeID, issueNodeID string) (string, error) {
	f.addCalls++
	f.gotProject = projectNodeID
	f.gotIssue = issueNodeID
	if f.addErr != nil {
		return "", f.addErr
	}
	return "PVTI_1", nil
}

func newTestService(client *fakeClient, secret string) *Service {
	return &Service{
		Client:        client,
		ProjectNodeID: "PVT_board",
		Secret:        secret,
		Logger:        zap.NewNop(),
		Metrics:       metrics.New(),
	}
}

const openedBody = `{"action":"opened","issue":{"node_id":"I_abc123","number":5},"repository":{"full_name":"GlueOps/storypoints"}}`

func TestHandleOpenedIssue(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	result := svc.Handle(context.Background(), "issues", "", []byte(openedBody))

	assert.Equal(t, ResultHandled, result)
	assert.Equal(t, 1, client.tokenCalls)
	assert.Equal(t, 1, client.addCalls)
	assert.Equal(t, "PVT_board", client.gotProject)
	assert.Equal(t, "I_abc123", client.gotIssue, "node id must be passed through unmodified")
}

func TestHandleReopenedIssue(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	body := `{"action":"reopened","issue":{"node_id":"I_xyz789"}}`
	result := svc.Handle(context.Background(), "issues", "", []byte(body))

	assert.Equal(t, ResultHandled, result)
	assert.Equal(t, "I_xyz789", client.gotIssue)
}

func TestIgnoresForeignEvents(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	// Foreign events are acknowledged without even parsing the body.
	result := svc.Handle(context.Background(), "push", "", []byte("not json at all"))

	assert.Equal(t, ResultIgnored, result)
	assert.Equal(t, 0, client.tokenCalls)
	assert.Equal(t, 0, client.addCalls)
}

func TestIgnoresOtherActions(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	body := `{"action":"closed","issue":{"node_id":"I_abc123"}}`
	result := svc.Handle(context.Background(), "issues", "", []byte(body))

	assert.Equal(t, ResultIgnored, result)
	assert.Equal(t, 0, client.tokenCalls)
}

func TestMalformedBody(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	result := svc.Handle(context.Background(), "issues", "", []byte("{truncated"))

	assert.Equal(t, ResultBadRequest, result)
	assert.Equal(t, 0, client.tokenCalls)
}

func TestMissingNodeID(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	body := `{"action":"opened","issue":{"number":5}}`
	result := svc.Handle(context.Background(), "issues", "", []byte(body))

	assert.Equal(t, ResultBadRequest, result)
	assert.Equal(t, 0, client.tokenCalls)
}

func TestAuthFailureSkipsMutation(t *testing.T) {
	client := &fakeClient{tokenErr: &github.AuthError{Op: "token exchange", StatusCode: 500, Body: "boom"}}
	svc := newTestService(client, "")

	result := svc.Handle(context.Background(), "issues", "", []byte(openedBody))

	assert.Equal(t, ResultUpstreamError, result)
	assert.Equal(t, 1, client.tokenCalls)
	assert.Equal(t, 0, client.addCalls, "mutation must not run without a token")
}

func TestMutationFailure(t *testing.T) {
	client := &fakeClient{addErr: errors.New("graphql down")}
	svc := newTestService(client, "")

	result := svc.Handle(context.Background(), "issues", "", []byte(openedBody))

	assert.Equal(t, ResultUpstreamError, result)
}

func sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func TestSignatureVerification(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "topsecret")

	body := []byte(openedBody)

	result := svc.Handle(context.Background(), "issues", sign(body, "topsecret"), body)
	assert.Equal(t, ResultHandled, result)

	result = svc.Handle(context.Background(), "issues", sign(body, "wrongsecret"), body)
	assert.Equal(t, ResultUnauthorized, result)

	result = svc.Handle(context.Background(), "issues", "", body)
	assert.Equal(t, ResultUnauthorized, result, "missing signature is a mismatch when a secret is set")

	assert.Equal(t, 1, client.addCalls, "only the correctly signed delivery reaches GitHub")
}

func TestNoSecretSkipsVerification(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, "")

	result := svc.Handle(context.Background(), "issues", "sha256=deadbeef", []byte(openedBody))
	assert.Equal(t, ResultHandled, result)
}
