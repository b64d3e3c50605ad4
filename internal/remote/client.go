package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the backend's record endpoints: select-by-user and
// upsert-by-id-array per entity type.
type Client struct {
	BaseURL string
	Token   func(context.Context) (string, error)
	HTTP    *http.Client
}

// NewClient returns a client with a sane default timeout. tok supplies the
// bearer token per request; a nil tok sends unauthenticated requests.
func NewClient(baseURL string, tok func(context.Context) (string, error)) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   tok,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

var errNotFound = fmt.Errorf("remote: not found")

func userQuery(userID string) url.Values {
	return url.Values{"user_id": []string{userID}}
}

// CollectionsForUser fetches every remote collection for the user,
// including soft-deleted ones.
func (c *Client) CollectionsForUser(ctx context.Context, userID string) ([]Collection, error) {
	var cols []Collection
	if err := c.do(ctx, http.MethodGet, "/v1/collections", userQuery(userID), nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// UpsertCollections writes the given collections remotely by id.
func (c *Client) UpsertCollections(ctx context.Context, cols []Collection) error {
	return c.do(ctx, http.MethodPut, "/v1/collections", nil, cols, nil)
}

// CardsForUser fetches every remote card for the user.
func (c *Client) CardsForUser(ctx context.Context, userID string) ([]Card, error) {
	var cards []Card
	if err := c.do(ctx, http.MethodGet, "/v1/cards", userQuery(userID), nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// UpsertCards writes the given cards remotely by id.
func (c *Client) UpsertCards(ctx context.Context, cards []Card) error {
	return c.do(ctx, http.MethodPut, "/v1/cards", nil, cards, nil)
}

// ProfileForUser fetches the user's remote profile, or nil if the user has
// never synced one.
func (c *Client) ProfileForUser(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(userID), nil, nil, &p)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile writes the user's profile remotely.
func (c *Client) UpsertProfile(ctx context.Context, p Profile) error {
	return c.do(ctx, http.MethodPut, "/v1/profiles/"+url.PathEscape(p.UserID), nil, p, nil)
}
