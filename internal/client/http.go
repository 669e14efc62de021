package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// HTTPClient is a client for the dynfilter HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	cookieName string
	httpClient *http.Client

	mu      sync.Mutex
	session string
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      opts.Token,
		cookieName: opts.CookieName,
		httpClient: &http.Client{Timeout: opts.Timeout},
		session:    opts.Session,
	}
}

// Session returns the current session id, as last set by the server.
func (c *HTTPClient) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Health returns the server's reported status.
func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// ListFilters returns the registered filters in declaration order.
func (c *HTTPClient) ListFilters(ctx context.Context) ([]FilterSummary, error) {
	var resp struct {
		Filters []FilterSummary `json:"filters"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/filters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Filters, nil
}

// GetFilter applies the stored values of the named filter.
func (c *HTTPClient) GetFilter(ctx context.Context, name string, req FilterRequest) (*FilterResult, error) {
	var res FilterResult
	if err := c.do(ctx, http.MethodGet, filterPath(name, req), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitFilter posts new values for the named filter. A submission that
// fails validation is not an error; see FilterResult.Form.
func (c *HTTPClient) SubmitFilter(ctx context.Context, name string, values url.Values, req FilterRequest) (*FilterResult, error) {
	var res FilterResult
	if err := c.do(ctx, http.MethodPost, filterPath(name, req), values, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func filterPath(name string, req FilterRequest) string {
	q := url.Values{}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	if req.Reset {
		q.Set("reset_filter", name)
	}
	path := "/v1/filters/" + url.PathEscape(name)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// do performs an HTTP request with an optional form body and decodes the
// JSON response. The session cookie is sent and refreshed on every call.
func (c *HTTPClient) do(ctx context.Context, method, path string, form url.Values, result any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := c.Session(); id != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: id})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName && ck.Value != "" {
			c.mu.Lock()
			c.session = ck.Value
			c.mu.Unlock()
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
