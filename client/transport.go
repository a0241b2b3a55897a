package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streamgate-io/streamgate/auth"
	"github.com/streamgate-io/streamgate/resilience"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	messagesPath   = "/v1/messages"
	apiVersion     = "2023-06-01"

	defaultMaxTokens = 4096
)

// Transport opens one streaming attempt and returns the raw event stream.
// Implementations classify failures into the resilience taxonomy so the
// retry layer can act on them without transport knowledge.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPTransport streams from an Anthropic-style messages endpoint.
type HTTPTransport struct {
	baseURL     string
	credentials auth.Credentials
	httpClient  *http.Client
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) TransportOption {
	return func(t *HTTPTransport) { t.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.httpClient = hc }
}

// NewHTTPTransport creates a transport with the given credentials.
func NewHTTPTransport(credentials auth.Credentials, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:     defaultBaseURL,
		credentials: credentials,
		httpClient:  http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// apiRequest is the wire shape of a streaming messages request.
type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Stream      bool         `json:"stream"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Tools       []apiTool    `json:"tools,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Open sends the streaming request. Non-success statuses are classified
// into the failure taxonomy, with Retry-After extracted on 429s.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(buildAPIRequest(req))
	if err != nil {
		return nil, resilience.NewError(resilience.KindValidation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewError(resilience.KindValidation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	if t.credentials != nil {
		if err := t.credentials.Apply(httpReq); err != nil {
			return nil, resilience.NewError(resilience.KindAuth, err)
		}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.NewError(resilience.KindNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyResponse(resp)
	}

	return resp.Body, nil
}

func buildAPIRequest(req Request) apiRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	out := apiRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Stream:      true,
		System:      req.System,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, apiMessage{Role: m.Role, Content: m.Content})
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, apiTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	return out
}

// classifyResponse turns a non-200 response into a classified error. The
// server's error body goes into the wrapped cause for logs; the
// user-facing message stays sanitized.
func classifyResponse(resp *http.Response) *resilience.Error {
	var retryAfter time.Duration
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, ok := resilience.ParseRetryAfter(v); ok {
			retryAfter = d
		}
	}

	e := resilience.FromStatus(resp.StatusCode, retryAfter)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		e.Err = fmt.Errorf("HTTP %d (unreadable body: %w)", resp.StatusCode, err)
		return e
	}
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Type != "" {
		e.Err = fmt.Errorf("HTTP %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	} else {
		e.Err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return e
}
