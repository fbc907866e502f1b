// Package clova implements the completion and speech gateways over HTTP.
package clova

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/resilience"
)

const (
	defaultTimeout  = 60 * time.Second
	maxErrorBodyLen = 64 << 10
)

func newHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func doRequest(client *http.Client, service string, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("%s request: %w", service, err), errorsx.ReasonTransport)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errorsx.Wrap(resilience.RateLimitError{Provider: service, Message: string(body)}, errorsx.ReasonRateLimit)
	}
	return nil, errorsx.Wrap(&gateway.StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, errorsx.ReasonTransport)
}
