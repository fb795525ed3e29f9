package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// Gateway delivers push notifications through an HTTP fan-out service.
type Gateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ ports.NotificationGateway = (*Gateway)(nil)

// NewGateway registers the service endpoint and API key.
func NewGateway(endpoint, apiKey string) *Gateway {
	return &Gateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type actionPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type notifyPayload struct {
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Recipients []string        `json:"recipients"`
	DeepLink   string          `json:"deepLink"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Actions    []actionPayload `json:"actions,omitempty"`
}

// Notify posts one notification to the gateway.
func (g *Gateway) Notify(ctx context.Context, n domain.Notification) error {
	if g.endpoint == "" {
		return fmt.Errorf("push gateway misconfigured")
	}
	if len(n.Recipients) == 0 {
		return nil
	}

	payload := notifyPayload{
		Title:      n.Title,
		Body:       n.Body,
		Recipients: n.Recipients,
		DeepLink:   n.DeepLink,
		ImageURL:   n.ImageURL,
	}
	for _, action := range n.Actions {
		payload.Actions = append(payload.Actions, actionPayload{ID: action.ID, Title: action.Title})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push gateway error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
