// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the webhook service.
type Metrics struct {
	// Webhook metrics
	WebhooksReceived *prometheus.CounterVec
	WebhooksHandled  *prometheus.CounterVec

	// Outbound GitHub API metrics
	GitHubRequests *prometheus.CounterVec

	// Delivery sweeper metrics
	Redeliveries *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// New creates and registers all Prometheus metrics. Registration happens
// once per process; repeated calls return the shared instance.
func New() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			WebhooksReceived: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storypoints_webhooks_received_total",
					Help: "Total number of webhook deliveries received, by event type",
				},
				[]string{"event"},
			),
			WebhooksHandled: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storypoints_webhooks_handled_total",
					Help: "Webhook handling outcomes (handled, ignored, bad_request, unauthorized, upstream_error)",
				},
				[]string{"result"},
			),
			GitHubRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storypoints_github_requests_total",
					Help: "Outbound GitHub API calls by operation and outcome",
				},
				[]string{"operation", "success"},
			),
			Redeliveries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storypoints_redeliveries_total",
					Help: "Failed webhook deliveries the sweeper asked GitHub to redeliver",
				},
				[]string{"result"},
			),
		}
	})

	return sharedMetrics
}

// RecordGitHubRequest records one outbound GitHub API call.
func (m *Metrics) RecordGitHubRequest(operation string, success bool) {
	successStr := "false"
	if success {
		successStr = "true"
	}
	m.GitHubRequests.WithLabelValues(operation, successStr).Inc()
}
