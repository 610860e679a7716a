package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/semuinside/exam-backend/internal/model"
)

// ErrRewardDisabled is returned when no reward webhook is configured.
var ErrRewardDisabled = errors.New("reward webhook not configured")

// RewardClient hands graded results to the point reward service.
type RewardClient struct {
	client *resty.Client
	url    string
}

// NewRewardClient creates a client. An empty url disables delivery.
func NewRewardClient(url string, timeout time.Duration) *RewardClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &RewardClient{client: client, url: url}
}

// Enabled reports whether a webhook is configured.
func (c *RewardClient) Enabled() bool { return c.url != "" }

// Send posts one graded result. The session id doubles as the idempotency key.
func (c *RewardClient) Send(ctx context.Context, req model.RewardRequest) error {
	if !c.Enabled() {
		return ErrRewardDisabled
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.SessionID.String()).
		SetBody(req).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post reward: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("reward service returned %d", resp.StatusCode())
	}
	return nil
}
