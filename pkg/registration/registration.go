// Package registration announces the service to a service registry and keeps
// the entry alive with heartbeats. It is optional: the server keeps working
// when the registry is unreachable.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/NERVsystems/tripmcp/pkg/monitoring"
)

const (
	// DefaultHeartbeatInterval is the time between heartbeats.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultTimeout bounds each registry request.
	DefaultTimeout = 5 * time.Second
	// maxAttempts is the number of tries for each heartbeat.
	maxAttempts = 3
)

// Config describes the service entry.
type Config struct {
	RegistryURL string
	ServiceName string
	// ServiceType defaults to "mcp".
	ServiceType string
	ServiceURL  string
	HealthURL   string
	Version     string

	// Modes are the transport modes the emission model supports.
	Modes []string
	// Tools are the MCP tools the service exposes.
	Tools    []string
	Metadata map[string]any

	HeartbeatInterval time.Duration
	Timeout           time.Duration
	// RetryDelay is the first backoff between attempts; it doubles per attempt.
	RetryDelay time.Duration
}

// Entry is the body posted to the registry.
type Entry struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	URL          string         `json:"url"`
	HealthURL    string         `json:"health_url"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Tools        []string       `json:"tools,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Ack is the registry's reply to a heartbeat.
type Ack struct {
	Status          string    `json:"status"`
	Name            string    `json:"name"`
	TTLSeconds      int       `json:"ttl_seconds"`
	NextHeartbeatBy time.Time `json:"next_heartbeat_by"`
}

// Client registers the service and sends heartbeats until stopped.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	registered bool
}

// NewClient returns a client for cfg. An empty RegistryURL makes Start a no-op.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.ServiceType == "" {
		cfg.ServiceType = "mcp"
	}
	if cfg.HealthURL == "" && cfg.ServiceURL != "" {
		if u, err := url.JoinPath(cfg.ServiceURL, "health"); err == nil {
			cfg.HealthURL = u
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger.With("component", "registration"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Start registers in the background and returns immediately.
func (c *Client) Start(ctx context.Context) {
	if c.cfg.RegistryURL == "" {
		c.logger.Info("service registration disabled")
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.heartbeatLoop(ctx)
}

// Stop deregisters and waits for the heartbeat loop to exit.
func (c *Client) Stop(ctx context.Context) {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.deregister(ctx)
}

// IsRegistered reports whether the last heartbeat was accepted.
func (c *Client) IsRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()

	c.heartbeat(ctx)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.heartbeat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// heartbeat posts the entry, retrying with exponential backoff.
func (c *Client) heartbeat(ctx context.Context) {
	delay := c.cfg.RetryDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var ack Ack
		ack, err = c.register(ctx)
		if err == nil {
			if !c.IsRegistered() {
				c.logger.Info("registered with service registry",
					"name", c.cfg.ServiceName,
					"ttl_seconds", ack.TTLSeconds,
				)
			}
			c.setRegistered(true)
			return
		}
		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}
		c.logger.Debug("registration attempt failed", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		return
	}
	monitoring.RecordError("registration", "heartbeat")
	c.logger.Warn("registration failed (registry may be unavailable)", "error", err)
	c.setRegistered(false)
}

func (c *Client) register(ctx context.Context) (Ack, error) {
	body, err := json.Marshal(Entry{
		Name:         c.cfg.ServiceName,
		Type:         c.cfg.ServiceType,
		URL:          c.cfg.ServiceURL,
		HealthURL:    c.cfg.HealthURL,
		Version:      c.cfg.Version,
		Capabilities: c.cfg.Modes,
		Tools:        c.cfg.Tools,
		Metadata:     c.cfg.Metadata,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("encoding entry: %w", err)
	}

	endpoint, err := url.JoinPath(c.cfg.RegistryURL, "api", "register")
	if err != nil {
		return Ack{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Ack{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Ack{}, fmt.Errorf("registry returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("decoding registry reply: %w", err)
	}
	return ack, nil
}

func (c *Client) deregister(ctx context.Context) {
	if !c.IsRegistered() {
		return
	}
	defer c.setRegistered(false)

	endpoint, err := url.JoinPath(c.cfg.RegistryURL, "api", "register", c.cfg.ServiceName)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Debug("deregistration failed", "error", err)
		}
		return
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		c.logger.Info("deregistered from service registry", "name", c.cfg.ServiceName)
	}
}

func (c *Client) setRegistered(registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = registered
}
