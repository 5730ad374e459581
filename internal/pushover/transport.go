package pushover

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// transportStrategy decides how a request reaches the gateway. It is picked once per client.
type transportStrategy interface {
	name() string
	apply(client *resty.Client)
	target(endpoint string) (string, error)
}

type directStrategy struct{}

func (directStrategy) name() string { return "direct" }

func (directStrategy) apply(*resty.Client) {}

func (directStrategy) target(endpoint string) (string, error) {
	return endpoint, nil
}

// proxiedStrategy sends plain HTTP requests in absolute form to a forward proxy.
type proxiedStrategy struct {
	proxy *url.URL
}

func (proxiedStrategy) name() string { return "proxied" }

func (s proxiedStrategy) apply(client *resty.Client) {
	client.SetProxy(s.proxy.String())
}

func (proxiedStrategy) target(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	u.Scheme = "http"
	return u.String(), nil
}

func resolveStrategy(proxyURL string) (transportStrategy, error) {
	trimmed := strings.TrimSpace(proxyURL)
	if trimmed == "" {
		return directStrategy{}, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", trimmed)
	}
	return proxiedStrategy{proxy: u}, nil
}
