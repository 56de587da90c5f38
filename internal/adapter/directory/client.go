package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
)

var _ portdir.Directory = (*Client)(nil)

// Client talks to the organization directory service over HTTP. It is the
// optional capability behind port/directory — the wire only constructs it
// when a directory URL and credential are configured.
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

type lookupByIDsReq struct {
	IDs   []string `json:"ids"`
	OrgID string   `json:"org_id"`
}

func (c *Client) LookupByIDs(ctx context.Context, ids []string, orgID string) ([]portdir.Member, error) {
	var members []portdir.Member
	err := c.post(ctx, "/v1/members/lookup", lookupByIDsReq{IDs: ids, OrgID: orgID}, &members)
	if err != nil {
		return nil, fmt.Errorf("directory lookup by ids: %w", err)
	}
	return members, nil
}

func (c *Client) LookupRoster(ctx context.Context, orgID string) ([]portdir.Member, error) {
	var members []portdir.Member
	err := c.get(ctx, fmt.Sprintf("/v1/orgs/%s/members?active=true", orgID), &members)
	if err != nil {
		return nil, fmt.Errorf("directory roster lookup: %w", err)
	}
	return members, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
