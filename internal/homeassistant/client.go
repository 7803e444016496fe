package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client pushes entity states to the Home Assistant REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Entity is a state object as returned by /api/states
type Entity struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetState creates or replaces the state of entityID
func (c *Client) SetState(ctx context.Context, entityID, state string, attributes map[string]interface{}) (*Entity, error) {
	body, err := json.Marshal(map[string]interface{}{
		"state":      state,
		"attributes": attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to set state of %s: %w", entityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HA API error %d: %s", resp.StatusCode, string(respBody))
	}

	var entity Entity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return nil, fmt.Errorf("failed to decode state of %s: %w", entityID, err)
	}
	return &entity, nil
}
