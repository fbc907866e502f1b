package clova

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/llm"
)

const (
	DefaultHost  = "https://clovastudio.stream.ntruss.com"
	DefaultModel = "HCX-005"

	headerRequestID = "X-NCP-CLOVASTUDIO-REQUEST-ID"
)

type CompletionConfig struct {
	Host    string
	Model   string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// CompletionClient calls the chat-completions endpoint of a single model.
type CompletionClient struct {
	cfg    CompletionConfig
	client *http.Client
}

func NewCompletionClient(cfg CompletionConfig) *CompletionClient {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return &CompletionClient{cfg: cfg, client: newHTTPClient(cfg.Client, cfg.Timeout)}
}

func (c *CompletionClient) Name() string { return "clova_studio" }

func (c *CompletionClient) Endpoint() string {
	return strings.TrimRight(c.cfg.Host, "/") + "/v3/chat-completions/" + c.cfg.Model
}

func (c *CompletionClient) Stream(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := doRequest(c.client, c.Name(), httpReq)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *CompletionClient) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	req.Stream = false
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := doRequest(c.client, c.Name(), httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	return body, nil
}

func (c *CompletionClient) newRequest(ctx context.Context, req llm.CompletionRequest) (*http.Request, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errorsx.New(errorsx.ReasonConfig, "clova studio api key is not configured")
	}
	body, err := req.Body()
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonDecode)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set(headerRequestID, llm.NormalizeRequestID(requestID))
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	return httpReq, nil
}
