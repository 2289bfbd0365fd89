package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const projectNodeIDQuery = `
query($org: String!, $projNum: Int!) {
  organization(login: $org) {
    projectV2(number: $projNum) {
      id
    }
  }
}`

const addItemMutation = `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
    item {
      id
    }
  }
}`

// ProjectNodeID resolves the configured project number to the opaque node
// ID the mutation needs. Called once at startup.
func (c *Client) ProjectNodeID(ctx context.Context, token string) (string, error) {
	var out struct {
		Organization struct {
			ProjectV2 struct {
				ID string `json:"id"`
			} `json:"projectV2"`
		} `json:"organization"`
	}
	err := c.doGraphQL(ctx, token, "projectV2 lookup", projectNodeIDQuery, map[string]interface{}{
		"org":     c.org,
		"projNum": c.projectNumber,
	}, &out)
	if err != nil {
		c.metrics.RecordGitHubRequest("project_lookup", false)
		return "", err
	}
	if out.Organization.ProjectV2.ID == "" {
		c.metrics.RecordGitHubRequest("project_lookup", false)
		return "", fmt.Errorf("project %d not found in organization %s", c.projectNumber, c.org)
	}

	c.metrics.RecordGitHubRequest("project_lookup", true)
	c.logger.Info("resolved project node id",
		zap.Int("project_number", c.projectNumber),
		zap.String("node_id", out.Organization.ProjectV2.ID))
	return out.Organization.ProjectV2.ID, nil
}

// AddIssueToProject links an issue to the Projects V2 board and returns the
// project item ID. An issue that is already on the board is treated as
// success, not a failure.
func (c *Client) AddIssueToProject(ctx context.Context, token, projectNodeID, issueNodeID string) (string, error) {
	var out struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	err := c.doGraphQL(ctx, token, "addProjectV2ItemById", addItemMutation, map[string]interface{}{
		"projectId": projectNodeID,
		"contentId": issueNodeID,
	}, &out)
	if err != nil {
		var mutErr *MutationError
		if errors.As(err, &mutErr) && mutErr.alreadyInProject() {
			c.logger.Info("issue already on project board", zap.String("issue_node_id", issueNodeID))
			c.metrics.RecordGitHubRequest("add_project_item", true)
			return "", nil
		}
		c.metrics.RecordGitHubRequest("add_project_item", false)
		return "", err
	}

	c.metrics.RecordGitHubRequest("add_project_item", true)
	return out.AddProjectV2ItemByID.Item.ID, nil
}

func (c *Client) doGraphQL(ctx context.Context, token, op, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}

	// GraphQL reports application errors in-band with HTTP 200.
	if len(envelope.Errors) > 0 {
		mutErr := &MutationError{Op: op}
		for _, e := range envelope.Errors {
			mutErr.Messages = append(mutErr.Messages, e.Message)
		}
		return mutErr
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}
