package leadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	portlead "github.com/jmoreland/lead-mesh/internal/port/leadstore"
)

var _ portlead.LeadStore = (*Client)(nil)

// Client talks to the Lead Store, the external service of record for lead
// ownership. SetOwner uses PUT so retries with the same (lead, assignee) are
// idempotent on the far side.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

type setOwnerReq struct {
	Assignee string `json:"assignee"`
	Reason   string `json:"reason"`
}

func (c *Client) SetOwner(ctx context.Context, leadID, assignee, reason string) error {
	payload, err := json.Marshal(setOwnerReq{Assignee: assignee, Reason: reason})
	if err != nil {
		return fmt.Errorf("encoding owner request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/v1/leads/%s/owner", c.baseURL, leadID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lead store set owner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("lead store set owner: status %d", resp.StatusCode)
	}
	return nil
}

type countActiveReq struct {
	IDs            []string `json:"ids"`
	ActiveStatuses []string `json:"active_statuses"`
}

func (c *Client) CountActiveByUsers(ctx context.Context, ids []string, activeStatuses []string) (map[string]int, error) {
	payload, err := json.Marshal(countActiveReq{IDs: ids, ActiveStatuses: activeStatuses})
	if err != nil {
		return nil, fmt.Errorf("encoding count request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/leads/counts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lead store count active: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lead store count active: status %d", resp.StatusCode)
	}
	var counts map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return nil, fmt.Errorf("decoding counts: %w", err)
	}
	return counts, nil
}
