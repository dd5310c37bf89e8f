// Package platform calls the extension platform's webhook APIs on behalf of
// an installed company.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// EventConfig names one webhook event the extension subscribes to.
type EventConfig struct {
	EventCategory string `json:"event_category"`
	EventName     string `json:"event_name"`
	EventType     string `json:"event_type"`
	Version       string `json:"version"`
}

// DefaultEvents are subscribed for every company on install.
var DefaultEvents = []EventConfig{
	{EventCategory: "company", EventName: "product", EventType: "delete", Version: "1"},
}

type EventDetail struct {
	ID            int64  `json:"id"`
	EventCategory string `json:"event_category,omitempty"`
	EventName     string `json:"event_name,omitempty"`
	EventType     string `json:"event_type,omitempty"`
	Version       string `json:"version,omitempty"`
}

type EventDetailsResponse struct {
	EventConfigs []EventDetail `json:"event_configs"`
}

// IDs returns the ids of all returned event configs.
func (r *EventDetailsResponse) IDs() []int64 {
	ids := make([]int64, 0, len(r.EventConfigs))
	for _, e := range r.EventConfigs {
		ids = append(ids, e.ID)
	}
	return ids
}

type Association struct {
	CompanyID string `json:"company_id"`
	Criteria  string `json:"criteria"`
}

type AuthMeta struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

type SubscriberConfig struct {
	Name        string      `json:"name"`
	WebhookURL  string      `json:"webhook_url"`
	Association Association `json:"association"`
	AuthMeta    AuthMeta    `json:"auth_meta"`
	EmailID     string      `json:"email_id"`
	EventID     []int64     `json:"event_id"`
	Status      string      `json:"status"`
}

type Config struct {
	ClusterURL string
	BaseURL    string
	APIKey     string
	APISecret  string
	Email      string
	Events     []EventConfig
}

// Client issues platform requests. The *http.Client passed to each call
// must attach the company's bearer token.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	cfg.ClusterURL = strings.TrimRight(cfg.ClusterURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Events) == 0 {
		cfg.Events = DefaultEvents
	}
	return &Client{cfg: cfg}
}

// QueryEventDetails resolves event configs to platform event ids.
func (c *Client) QueryEventDetails(ctx context.Context, hc *http.Client, configs []EventConfig) (*EventDetailsResponse, error) {
	url := c.cfg.ClusterURL + "/service/common/webhook/v1.0/events/query-event-details"

	var out EventDetailsResponse
	if err := c.post(ctx, hc, url, configs, &out); err != nil {
		return nil, fmt.Errorf("query event details: %w", err)
	}
	return &out, nil
}

// ConfigureWebhookSubscriber points the company's webhook subscriber for
// eventIDs at this extension's /ext/webhook endpoint.
func (c *Client) ConfigureWebhookSubscriber(ctx context.Context, hc *http.Client, companyID string, eventIDs []int64) (map[string]any, error) {
	url := fmt.Sprintf("%s/service/platform/webhook/v1.0/company/%s/subscriber", c.cfg.ClusterURL, companyID)

	body := SubscriberConfig{
		Name:        c.cfg.APIKey,
		WebhookURL:  c.cfg.BaseURL + "/ext/webhook",
		Association: Association{CompanyID: companyID, Criteria: "ALL"},
		AuthMeta:    AuthMeta{Type: "hmac", Secret: c.cfg.APISecret},
		EmailID:     c.cfg.Email,
		EventID:     eventIDs,
		Status:      "active",
	}

	out := map[string]any{}
	if err := c.post(ctx, hc, url, body, &out); err != nil {
		return nil, fmt.Errorf("configure webhook subscriber: %w", err)
	}
	return out, nil
}

// RegisterWebhooks runs both calls for the configured events.
func (c *Client) RegisterWebhooks(ctx context.Context, hc *http.Client, companyID string) error {
	events, err := c.QueryEventDetails(ctx, hc, c.cfg.Events)
	if err != nil {
		return err
	}
	_, err = c.ConfigureWebhookSubscriber(ctx, hc, companyID, events.IDs())
	return err
}

func (c *Client) post(ctx context.Context, hc *http.Client, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
