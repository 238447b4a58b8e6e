package collector

import (
	"context"
	"fmt"
	"time"

	"CrashRadar/internal/model"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads a full monthly history for a metric.
type Fetcher interface {
	FetchMonthly(ctx context.Context, metric model.Metric) ([]model.Point, error)
	Name() string
}

// ClientOptions configures the HTTP client shared by the remote fetchers.
type ClientOptions struct {
	Timeout  time.Duration
	ProxyURL string
}

func newClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Mozilla/5.0")
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}
	return client
}

func download(ctx context.Context, client *resty.Client, name, url string) ([]byte, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: status %d", name, resp.StatusCode())
	}
	return resp.Body(), nil
}
