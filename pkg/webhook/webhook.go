// Package webhook delivers review events to an external HTTP endpoint.
// Remote agent servers subscribe to a workspace by pointing
// notify.webhook_url at themselves; payloads are signed so they can
// authenticate the sender.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/patchgate-project/patchgate/pkg/jsonutil"
	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/metrics"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Config represents the webhook delivery configuration.
type Config struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	QueueSize  int
}

// DefaultConfig returns the default webhook configuration. URL is empty,
// which leaves the client disabled.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		QueueSize:  100,
	}
}

// Client posts events to the configured URL. It implements notify.Sink;
// Deliver enqueues and a background worker performs the HTTP calls so
// dispatch never waits on the network.
type Client struct {
	config *Config
	http   *http.Client
	queue  chan model.Event
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	reg    *metrics.Registry
}

// NewClient creates a webhook client. A nil config or empty URL yields a
// disabled client whose Deliver is a no-op.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan model.Event, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		reg:    metrics.Default(),
	}

	if c.Enabled() {
		c.start()
	}

	return c
}

// Enabled reports whether a delivery URL is configured.
func (c *Client) Enabled() bool {
	return c.config.URL != ""
}

func (c *Client) start() {
	c.once.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			// Drain remaining events
			for {
				select {
				case ev := <-c.queue:
					c.send(ev)
				default:
					return
				}
			}
		case ev := <-c.queue:
			c.send(ev)
		}
	}
}

// Deliver implements notify.Sink. Events are queued for background
// delivery and dropped when the queue is full.
func (c *Client) Deliver(ev model.Event) {
	if !c.Enabled() {
		return
	}

	select {
	case c.queue <- ev:
	default:
		c.reg.Inc(metrics.EventsDropped)
		logging.Warn("webhook queue full, dropping event",
			map[string]any{"event": string(ev.Type)})
	}
}

func (c *Client) send(ev model.Event) {
	if err := c.post(ev); err != nil {
		c.reg.Inc(metrics.DeliveriesFailed)
		logging.ErrorErr("webhook delivery failed", err,
			map[string]any{"event": string(ev.Type), "url": c.config.URL})
	}
}

// post performs the HTTP call with retries.
func (c *Client) post(ev model.Event) error {
	payload, err := jsonutil.EventPayload(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := c.createRequest(ev, payload)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	return lastErr
}

func (c *Client) createRequest(ev model.Event, payload []byte) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "patchgate-webhook/1.0")
	req.Header.Set("X-PatchGate-Event", string(ev.Type))

	if c.config.Secret != "" {
		req.Header.Set("X-PatchGate-Signature", Sign(payload, c.config.Secret))
	}

	return req, nil
}

// Sign creates an HMAC-SHA256 signature over the canonical payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign. Receivers use it to
// authenticate incoming deliveries.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// Close gracefully shuts down the client after draining queued events.
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}

	c.cancel()
	c.wg.Wait()
	return nil
}
