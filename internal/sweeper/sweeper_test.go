package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GlueOps/storypoints/internal/metrics"
	"github.com/GlueOps/storypoints/restapi/modules/github"
)

type fakeDeliveryClient struct {
	jwtErr      error
	listErr     error
	deliveries  []github.Delivery
	redelivered []int64
	failIDs     map[int64]bool
	listCalls   int
}

func (f *fakeDeliveryClient) AppJWT() (string, error) {
	if f.jwtErr != nil {
		return "", f.jwtErr
	}
	return "signed-jwt", nil
}

func (f *fakeDeliveryClient) ListDeliveries(_ context.Context, _ string, _ time.Time) ([]github.Delivery, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.deliveries, nil
}

func (f *fakeDeliveryClient) Redeliver(_ context.Context, _ string, deliveryID int64) error {
	if f.failIDs[deliveryID] {
		return errors.New("redelivery rejected")
	}
	f.redelivered = append(f.redelivered, deliveryID)
	return nil
}

func TestSweepRedeliversFailures(t *testing.T) {
	client := &fakeDeliveryClient{
		deliveries: []github.Delivery{
			{ID: 1, GUID: "a", StatusCode: 200},
			{ID: 2, GUID: "b", StatusCode: 502},
			{ID: 3, GUID: "c", StatusCode: 500, Redelivery: true},
		},
	}
	s := New(client, zap.NewNop(), metrics.New(), 3)

	s.Sweep(context.Background())

	assert.Equal(t, []int64{2, 3}, client.redelivered)
}

func TestSweepContinuesPastRedeliveryErrors(t *testing.T) {
	client := &fakeDeliveryClient{
		deliveries: []github.Delivery{
			{ID: 2, GUID: "b", StatusCode: 502},
			{ID: 3, GUID: "c", StatusCode: 500},
		},
		failIDs: map[int64]bool{2: true},
	}
	s := New(client, zap.NewNop(), metrics.New(), 3)

	s.Sweep(context.Background())

	assert.Equal(t, []int64{3}, client.redelivered, "one rejection must not stop the sweep")
}

func TestSweepAbortsWithoutJWT(t *testing.T) {
	client := &fakeDeliveryClient{jwtErr: errors.New("bad key")}
	s := New(client, zap.NewNop(), metrics.New(), 3)

	s.Sweep(context.Background())

	assert.Equal(t, 0, client.listCalls, "no delivery listing without a signed jwt")
}

func TestSweepAbortsWhenListingFails(t *testing.T) {
	client := &fakeDeliveryClient{listErr: errors.New("rate limited")}
	s := New(client, zap.NewNop(), metrics.New(), 3)

	s.Sweep(context.Background())

	assert.Empty(t, client.redelivered)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	client := &fakeDeliveryClient{}
	s := New(client, zap.NewNop(), metrics.New(), 3)
	s.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, client.listCalls, 2, "runs once at start, then on each tick")
}
