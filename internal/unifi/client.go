// Package unifi talks to the UniFi Network controller API.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const unifiOSPrefix = "/proxy/network"

// Config holds the connection parameters for one controller.
type Config struct {
	BaseURL   string
	Site      string
	Username  string
	Password  string
	VerifySSL bool
	// Timeout bounds each request; zero disables it.
	Timeout time.Duration
	// WarnInsecure is called when certificate verification is disabled.
	WarnInsecure func()
}

// Client is a session against one controller site.
type Client struct {
	cfg    Config
	client *http.Client

	mu       sync.Mutex
	loggedIn bool
	prefix   string
	csrf     string
}

// NewClient creates a controller client. No request is made until the first fetch.
func NewClient(cfg Config) *Client {
	jar, _ := cookiejar.New(nil)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		if cfg.WarnInsecure != nil {
			cfg.WarnInsecure()
		}
	}
	if cfg.Site == "" {
		cfg.Site = "default"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       jar,
		},
	}
}

// Login authenticates, detecting UniFi OS consoles versus classic controllers.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	err := c.postLogin(ctx, "/api/auth/login")
	if err == nil {
		c.prefix = unifiOSPrefix
		c.loggedIn = true
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return err
	}

	if err := c.postLogin(ctx, "/api/login"); err != nil {
		return err
	}
	c.prefix = ""
	c.loggedIn = true
	return nil
}

func (c *Client) postLogin(ctx context.Context, path string) error {
	body, _ := json.Marshal(map[string]any{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
		"remember": true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		if token := resp.Header.Get("X-Csrf-Token"); token != "" {
			c.csrf = token
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest:
		return &AuthError{StatusCode: resp.StatusCode, Msg: "credentials rejected"}
	default:
		return &HTTPError{StatusCode: resp.StatusCode, Path: path}
	}
}

// get fetches a site-scoped endpoint and decodes the data array.
func (c *Client) get(ctx context.Context, endpoint string) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return nil, err
		}
	}

	records, err := c.doGet(ctx, endpoint)
	if err == nil {
		return records, nil
	}
	if _, ok := err.(*AuthError); !ok {
		return nil, err
	}

	// session expired, log in again once
	c.loggedIn = false
	if err := c.loginLocked(ctx); err != nil {
		return nil, err
	}
	return c.doGet(ctx, endpoint)
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]Record, error) {
	path := fmt.Sprintf("%s/api/s/%s/%s", c.prefix, c.cfg.Site, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.csrf != "" {
		req.Header.Set("X-Csrf-Token", c.csrf)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, &AuthError{StatusCode: resp.StatusCode}
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Path: path}
	}

	var envelope struct {
		Meta struct {
			RC  string `json:"rc"`
			Msg string `json:"msg"`
		} `json:"meta"`
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if envelope.Meta.RC != "" && envelope.Meta.RC != "ok" {
		if envelope.Meta.Msg == "api.err.LoginRequired" {
			return nil, &AuthError{StatusCode: http.StatusUnauthorized, Msg: envelope.Meta.Msg}
		}
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("controller error: %s", envelope.Meta.Msg)}
	}

	records := make([]Record, 0, len(envelope.Data))
	for _, d := range envelope.Data {
		records = append(records, Record(d))
	}
	return records, nil
}

// FetchDevices returns UniFi devices; detailed selects the full stat endpoint.
func (c *Client) FetchDevices(ctx context.Context, detailed bool) ([]Record, error) {
	if detailed {
		return c.get(ctx, "stat/device")
	}
	return c.get(ctx, "stat/device-basic")
}

// FetchClients returns the active clients.
func (c *Client) FetchClients(ctx context.Context) ([]Record, error) {
	return c.get(ctx, "stat/sta")
}

// FetchNetworks returns network definitions.
func (c *Client) FetchNetworks(ctx context.Context) ([]Record, error) {
	return c.get(ctx, "rest/networkconf")
}

func isStatus(err error, status int) bool {
	switch e := err.(type) {
	case *HTTPError:
		return e.StatusCode == status
	case *AuthError:
		return e.StatusCode == status
	}
	return false
}
