package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"postpilot/apps/backend/features/content"
)

// Client publishes content items to a client's WordPress site over the REST
// API. The publish call is idempotent from the queue's point of view: callers
// check the item's published flag before invoking it again.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Publish(ctx context.Context, item *content.ContentItem) error {
	reqBody := map[string]interface{}{
		"title":   item.Title,
		"content": item.Body,
		"status":  "publish",
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	url := c.baseURL + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("wordpress publish failed: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
