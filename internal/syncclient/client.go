// Package syncclient speaks the room polling protocol from the operator,
// stage and dashboard side.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timepon/engine/internal/service"
)

// APIError is a {"ok":false} response.
type APIError struct {
	Status int
	Kind   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("timepon: %s (http %d)", e.Kind, e.Status)
}

// Retryable reports whether the same request may succeed later unchanged.
func (e *APIError) Retryable() bool {
	return e.Kind == "storage_error" || e.Kind == "rate_limited"
}

// Client is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
}

// New targets the engine at baseURL, e.g. "https://timer.example.com".
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// Create allocates a room. The admin key is only ever returned here.
func (c *Client) Create(ctx context.Context) (id, key string, err error) {
	var out struct {
		ID       string `json:"id"`
		AdminKey string `json:"adminKey"`
	}
	if err := c.do(ctx, http.MethodPost, "create", nil, &out); err != nil {
		return "", "", err
	}
	return out.ID, out.AdminKey, nil
}

func (c *Client) Get(ctx context.Context, id string) (service.View, error) {
	var v service.View
	err := c.do(ctx, http.MethodGet, "get", url.Values{"id": {id}}, &v)
	return v, err
}

func (c *Client) Heartbeat(ctx context.Context, id string, fullscreen bool) (service.View, error) {
	fs := "0"
	if fullscreen {
		fs = "1"
	}
	var v service.View
	err := c.do(ctx, http.MethodPost, "hb", url.Values{"id": {id}, "fs": {fs}}, &v)
	return v, err
}

// Command sends a set command. extra carries command parameters such as
// durationSec, text or on.
func (c *Client) Command(ctx context.Context, id, key, cmd string, extra url.Values) error {
	form := url.Values{"id": {id}, "k": {key}, "cmd": {cmd}}
	for k, vs := range extra {
		form[k] = vs
	}
	return c.do(ctx, http.MethodPost, "set", form, nil)
}

// Settings sends setSettings with whichever fields are present in fields.
func (c *Client) Settings(ctx context.Context, id, key string, fields url.Values) error {
	form := url.Values{"id": {id}, "k": {key}}
	for k, vs := range fields {
		form[k] = vs
	}
	return c.do(ctx, http.MethodPost, "setSettings", form, nil)
}

func (c *Client) AckStart(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "ackStart", url.Values{"id": {id}}, nil)
}

func (c *Client) AckMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "ackMsg", url.Values{"id": {id}}, nil)
}

func (c *Client) do(ctx context.Context, method, action string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	form.Set("action", action)

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.base+"/api?"+form.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.base+"/api", strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var status struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("timepon: decode %s response (http %d): %w", action, resp.StatusCode, err)
	}
	if !status.OK {
		return &APIError{Status: resp.StatusCode, Kind: status.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
