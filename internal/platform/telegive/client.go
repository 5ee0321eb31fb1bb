package telegive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/azatarm-prog/telegive-participant/internal/common/config"
	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
)

// SubscriptionChecker is the collaborator that answers whether a user is
// subscribed to the channel behind a giveaway. The participant core only
// stores the resulting flag.
type SubscriptionChecker interface {
	VerifySubscription(ctx context.Context, userID, giveawayID int64) (*SubscriptionResult, error)
}

type SubscriptionResult struct {
	IsSubscribed     bool   `json:"is_subscribed"`
	MembershipStatus string `json:"membership_status"`
	ChannelTitle     string `json:"channel_title"`
}

// Client talks to the telegive channel service over its internal API.
type Client struct {
	baseURL     string
	serviceName string
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:     cfg.Telegive.ChannelServiceURL,
		serviceName: cfg.ServiceName,
		httpClient:  &http.Client{Timeout: cfg.Telegive.RequestTimeout},
	}
}

type subscriptionResponse struct {
	Success          bool   `json:"success"`
	IsSubscribed     bool   `json:"is_subscribed"`
	MembershipStatus string `json:"membership_status"`
	ChannelInfo      struct {
		Title string `json:"title"`
	} `json:"channel_info"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func (c *Client) VerifySubscription(ctx context.Context, userID, giveawayID int64) (*SubscriptionResult, error) {
	url := fmt.Sprintf("%s/api/channels/check-subscription?user_id=%d&giveaway_id=%d",
		c.baseURL, userID, giveawayID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Name", c.serviceName)
	req.Header.Set("User-Agent", c.serviceName+"/1.0.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel service request failed: %w", err)
	}
	defer resp.Body.Close()

	var body subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode channel service response: %w", err)
	}

	logger.Debug().
		Int64("user_id", userID).
		Int64("giveaway_id", giveawayID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Subscription check completed")

	if resp.StatusCode != http.StatusOK || !body.Success {
		if body.Error == "" {
			body.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("subscription check rejected: %s (%s)", body.Error, body.ErrorCode)
	}

	return &SubscriptionResult{
		IsSubscribed:     body.IsSubscribed,
		MembershipStatus: body.MembershipStatus,
		ChannelTitle:     body.ChannelInfo.Title,
	}, nil
}
