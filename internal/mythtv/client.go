package mythtv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default Services API ports
const (
	DefaultBackendPort  = 6544
	DefaultFrontendPort = 6547
)

const (
	defaultTimeout = 2 * time.Second
	userAgent      = "mythtv_control/1.0"
	maxBodySize    = 4 << 20
)

// Response is the top level key/value payload of a Services API reply
type Response map[string]json.RawMessage

// Decode unmarshals the value stored under key into v. It reports false
// (and no error) when the key is absent.
func (r Response) Decode(key string, v interface{}) (bool, error) {
	raw, ok := r[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Client talks to a single MythTV host (backend or frontend)
type Client struct {
	Host       string
	Port       int
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for host:port. A zero timeout uses the default.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		Host:    host,
		Port:    port,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Address returns host:port
func (c *Client) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the http URL of the host, without trailing slash
func (c *Client) BaseURL() string {
	return "http://" + c.Address()
}

// Timeout returns the per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get issues a GET to endpoint (e.g. "Frontend/GetStatus")
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (Response, error) {
	u := c.BaseURL() + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, endpoint)
}

// Post issues a form encoded POST to endpoint. These are the write calls
// (SendAction, SendNotification) of the API.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values) (Response, error) {
	u := c.BaseURL() + "/" + strings.TrimPrefix(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) (Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	Debugf("MythTV: %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Kind:       "HTTP",
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{
			Endpoint: endpoint,
			Kind:     "Warning",
			Message:  fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	for _, kind := range []string{"Abort", "Warning"} {
		if raw, ok := result[kind]; ok {
			return nil, &APIError{Endpoint: endpoint, Kind: kind, Message: rawText(raw)}
		}
	}

	return result, nil
}

// Probe reports whether the host accepts TCP connections on its API port
func (c *Client) Probe(ctx context.Context) bool {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Address())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
