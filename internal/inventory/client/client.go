// Package client implements inventory.Store over the JSON inventory API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-inventory/internal/inventory"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/httpx"
)

const itemsPath = "/api/inventory/items"

// Config configures Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a remote inventory.Store.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("inventory client: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("inventory client: base url %q must be http or https", cfg.BaseURL)
	}
	return &Client{base: base, token: cfg.Token, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

var _ inventory.Store = (*Client)(nil)

// List fetches the full collection.
func (c *Client) List(ctx context.Context) ([]inventory.Item, error) {
	var items []inventory.Item
	if err := c.do(ctx, "list", "", http.MethodGet, itemsPath, nil, &items, ""); err != nil {
		return nil, err
	}
	if items == nil {
		items = []inventory.Item{}
	}
	return items, nil
}

// Create stores a new item. The idempotency key on ctx is forwarded.
func (c *Client) Create(ctx context.Context, fields inventory.ItemFields) (inventory.Item, error) {
	var item inventory.Item
	err := c.do(ctx, "create", "", http.MethodPost, itemsPath, fields, &item, inventory.IdempotencyKeyFromContext(ctx))
	return item, err
}

// Update replaces the fields of item id.
func (c *Client) Update(ctx context.Context, id string, fields inventory.ItemFields) (inventory.Item, error) {
	var item inventory.Item
	err := c.do(ctx, "update", id, http.MethodPut, itemsPath+"/"+url.PathEscape(id), fields, &item, "")
	return item, err
}

// Delete removes item id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", id, http.MethodDelete, itemsPath+"/"+url.PathEscape(id), nil, nil, "")
}

func (c *Client) do(ctx context.Context, op, id, method, path string, body, out any, idemKey string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &inventory.StoreError{Op: op, ID: id, Kind: inventory.KindInternal, Err: err}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return &inventory.StoreError{Op: op, ID: id, Kind: inventory.KindInternal, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idemKey != "" {
		req.Header.Set(inventory.IdempotencyHeader, idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &inventory.StoreError{Op: op, ID: id, Kind: inventory.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeProblem(op, id, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &inventory.StoreError{Op: op, ID: id, Kind: inventory.KindNetwork, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeProblem(op, id string, resp *http.Response) error {
	var problem httpx.ProblemDetail
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &problem)

	serr := &inventory.StoreError{Op: op, ID: id, Kind: kindForStatus(resp.StatusCode)}
	detail := problem.Detail
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	serr.Err = fmt.Errorf("status %d: %s", resp.StatusCode, detail)
	if serr.Kind == inventory.KindValidation {
		serr.Fields = inventory.FieldErrors(problem.Errors)
		if len(serr.Fields) == 0 && problem.Detail != "" {
			serr.Fields = inventory.FieldErrors{"general": problem.Detail}
		}
	}
	return serr
}

func kindForStatus(status int) inventory.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return inventory.KindValidation
	case http.StatusNotFound:
		return inventory.KindNotFound
	case http.StatusConflict:
		return inventory.KindConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return inventory.KindNetwork
	}
	return inventory.KindInternal
}

// IsNetwork reports whether err is a transport level failure.
func IsNetwork(err error) bool {
	var serr *inventory.StoreError
	return errors.As(err, &serr) && serr.Kind == inventory.KindNetwork
}
