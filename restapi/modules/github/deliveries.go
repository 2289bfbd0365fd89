package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ListDeliveries walks the App's webhook delivery log back to the cutoff.
// The log is newest-first and paginated via Link headers; the walk stops at
// the first entry older than since.
func (c *Client) ListDeliveries(ctx context.Context, signedJWT string, since time.Time) ([]Delivery, error) {
	url := fmt.Sprintf("%s/app/hook/deliveries?per_page=100", c.baseURL)
	var deliveries []Delivery

	for url != "" {
		page, next, err := c.deliveriesPage(ctx, signedJWT, url)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, d := range page {
			if d.DeliveredAt.Before(since) {
				return deliveries, nil
			}
			deliveries = append(deliveries, d)
		}
		url = next
	}

	return deliveries, nil
}

func (c *Client) deliveriesPage(ctx context.Context, signedJWT, url string) ([]Delivery, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("list deliveries: build request: %w", err)
	}
	setHeaders(req, signedJWT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("list deliveries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("list deliveries: status %d: %s", resp.StatusCode, string(body))
	}

	var page []Delivery
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("list deliveries: decode: %w", err)
	}

	return page, nextLink(resp.Header.Get("Link")), nil
}

// nextLink extracts the rel="next" target from a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

// FailedDeliveries picks out deliveries GitHub could not complete,
// deduplicated by GUID so one webhook is redelivered at most once per sweep.
func FailedDeliveries(deliveries []Delivery) []Delivery {
	var failed []Delivery
	seen := make(map[string]bool)
	for _, d := range deliveries {
		if d.StatusCode == http.StatusOK || d.ID == 0 || seen[d.GUID] {
			continue
		}
		seen[d.GUID] = true
		failed = append(failed, d)
	}
	return failed
}

// Redeliver asks GitHub to attempt a failed delivery again.
func (c *Client) Redeliver(ctx context.Context, signedJWT string, deliveryID int64) error {
	url := fmt.Sprintf("%s/app/hook/deliveries/%d/attempts", c.baseURL, deliveryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("redeliver %d: build request: %w", deliveryID, err)
	}
	setHeaders(req, signedJWT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("redeliver %d: %w", deliveryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("redeliver %d: status %d: %s", deliveryID, resp.StatusCode, string(body))
	}
	return nil
}
