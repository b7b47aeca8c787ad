package router

import (
	"context"
	"fmt"

	"github.com/ernesto-jimenez/httplogger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/config"
)

// Client issues Digest-authenticated requests against the router web UI.
// It carries no mutable session state; every call is independent.
type Client struct {
	rc      *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a Client for the router described by cfg.
// The router only speaks plain HTTP.
func NewClient(cfg config.RouterConfig, logger *zap.Logger) *Client {
	baseURL := "http://" + cfg.Host
	rc := resty.New()

	// The logged transport has to be installed before Digest auth, which wraps
	// whatever transport is current at that point.
	if cfg.Debug {
		rc.SetTransport(httplogger.NewLoggedTransport(rc.GetClient().Transport, newWireLogger(logger)))
	}

	rc.SetBaseURL(baseURL)
	rc.SetDigestAuth(cfg.Username, cfg.Password)

	return &Client{
		rc:      rc,
		baseURL: baseURL,
		logger:  logger,
	}
}

// BaseURL returns the router address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches a page and returns its body.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", path, err)
	}
	return c.body(resp)
}

// Post submits form to path. A non-empty referer is sent as an absolute URL,
// as the router rejects saves that do not come from its own page.
func (c *Client) Post(ctx context.Context, path string, form Form, referer string) (string, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode())
	if referer != "" {
		req.SetHeader("Referer", c.baseURL+referer)
	}

	resp, err := req.Post(path)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", path, err)
	}
	return c.body(resp)
}

// Apply commits every pending change on the router, not only NAT ones.
func (c *Client) Apply(ctx context.Context) error {
	if _, err := c.Post(ctx, PathApply, applyForm, ""); err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}
	c.logger.Info("applied pending router changes")
	return nil
}

func (c *Client) body(resp *resty.Response) (string, error) {
	c.logger.Debug("router response",
		zap.String("method", resp.Request.Method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", resp.Time()),
	)

	if !resp.IsSuccess() {
		return "", &StatusError{
			Method:     resp.Request.Method,
			Path:       resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}
	return string(resp.Body()), nil
}
