package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultServerURL is used when no server is configured.
	DefaultServerURL = "https://joinus.cx"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second
	// HeaderAPIKey carries the shared API key.
	HeaderAPIKey = "X-API-Key"

	apiPrefix       = "api/mobile/"
	maxResponseSize = 4 << 20
)

// ErrMissingAPIKey is returned before any network call when no API key is
// configured. It is a permanent configuration error.
var ErrMissingAPIKey = errors.New("remote: API key is not configured")

// Status is a reported synchronization outcome.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
	StatusDeleted Status = "deleted"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusSynced, StatusFailed, StatusDeleted:
		return st, nil
	}
	return "", fmt.Errorf("remote: invalid status %q (want synced, failed, or deleted)", s)
}

// Contact is one pending contact from the remote queue.
type Contact struct {
	ID            int64  `json:"id"`
	ApplicationID int64  `json:"application_id"`
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Source        string `json:"source"`
	CreatedAt     string `json:"created_at"`
}

// UnmarshalJSON accepts id and application_id as numbers or quoted numbers.
func (c *Contact) UnmarshalJSON(data []byte) error {
	type plain Contact
	aux := struct {
		*plain
		ID            looseInt `json:"id"`
		ApplicationID looseInt `json:"application_id"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ID = int64(aux.ID)
	c.ApplicationID = int64(aux.ApplicationID)
	return nil
}

// Outcome reports what happened to one remote contact. DeviceContactID is nil
// when no local entry was written.
type Outcome struct {
	ContactID       int64   `json:"contact_id"`
	DeviceContactID *string `json:"device_contact_id"`
	Status          Status  `json:"status"`
}

// Synced returns a synced outcome for the local entry id.
func Synced(contactID int64, deviceContactID string) Outcome {
	return Outcome{ContactID: contactID, DeviceContactID: &deviceContactID, Status: StatusSynced}
}

// Failed returns a failed outcome with no local entry.
func Failed(contactID int64) Outcome {
	return Outcome{ContactID: contactID, Status: StatusFailed}
}

// Stats are the remote queue counters.
type Stats struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted"`
	Total   int `json:"total"`
}

// UnmarshalJSON accepts the counters as numbers or quoted numbers.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var aux struct {
		Pending looseInt `json:"pending"`
		Synced  looseInt `json:"synced"`
		Failed  looseInt `json:"failed"`
		Deleted looseInt `json:"deleted"`
		Total   looseInt `json:"total"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Stats{
		Pending: int(aux.Pending),
		Synced:  int(aux.Synced),
		Failed:  int(aux.Failed),
		Deleted: int(aux.Deleted),
		Total:   int(aux.Total),
	}
	return nil
}

// looseInt decodes a JSON number, a quoted number ("12"), or null (zero).
// The server returns numeric columns either way.
type looseInt int64

func (n *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("remote: invalid integer %s: %w", s, err)
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			*n = 0
			return nil
		}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = looseInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return fmt.Errorf("remote: invalid integer %s", data)
	}
	*n = looseInt(f)
	return nil
}

// Response is the common envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Error is the uniform failure result of a remote operation. Transport
// failures, non-2xx statuses, malformed bodies, and success=false envelopes
// all map to it.
type Error struct {
	Op     string
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote: %s failed (HTTP %d): %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("remote: %s failed: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client is a stateless wrapper around the remote contacts API. It does not
// retry.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default client with its 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit paces outgoing requests.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Client for serverURL. An empty serverURL selects
// [DefaultServerURL]. An empty apiKey is accepted; operations then fail with
// [ErrMissingAPIKey].
func New(serverURL string, apiKey string, opts ...Option) (*Client, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid server URL %q: %w", serverURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid server URL %q: want http(s)://host", serverURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(serverURL, "/") + "/" + apiPrefix,
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Verify checks connectivity and the API key.
func (c *Client) Verify(ctx context.Context) (Response, error) {
	return c.call(ctx, "verify", http.MethodGet, "verify.php", nil, nil)
}

// FetchPending returns the pending contacts in server order. A failure is
// reported as an error, never as an empty list.
func (c *Client) FetchPending(ctx context.Context) ([]Contact, error) {
	var payload struct {
		Contacts []Contact `json:"contacts"`
	}
	if _, err := c.call(ctx, "fetch pending", http.MethodGet, "contacts.php?action=pending", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Contacts == nil {
		return []Contact{}, nil
	}
	return payload.Contacts, nil
}

// Stats returns the remote queue counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var payload struct {
		Stats Stats `json:"stats"`
	}
	if _, err := c.call(ctx, "contact stats", http.MethodGet, "contacts.php?action=all", nil, &payload); err != nil {
		return Stats{}, err
	}
	return payload.Stats, nil
}

// Report submits one outcome.
func (c *Client) Report(ctx context.Context, outcome Outcome) (Response, error) {
	return c.call(ctx, "report", http.MethodPost, "contacts.php?action=sync", outcome, nil)
}

// ReportBatch submits outcomes in order. An empty batch is a no-op.
func (c *Client) ReportBatch(ctx context.Context, outcomes []Outcome) (Response, error) {
	if len(outcomes) == 0 {
		return Response{Success: true}, nil
	}
	body := struct {
		Contacts []Outcome `json:"contacts"`
	}{Contacts: outcomes}
	return c.call(ctx, "report batch", http.MethodPost, "contacts.php?action=bulk-sync", body, nil)
}

// AddContact queues a contact on the server by hand.
func (c *Client) AddContact(ctx context.Context, phone string, name string) (Response, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Response{}, errors.New("remote: phone is required")
	}
	body := struct {
		Phone string `json:"phone"`
		Name  string `json:"name"`
	}{Phone: phone, Name: strings.TrimSpace(name)}
	return c.call(ctx, "add contact", http.MethodPost, "contacts.php?action=add", body, nil)
}

func (c *Client) call(ctx context.Context, op string, method string, endpoint string, body any, out any) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, &Error{Op: op, Reason: err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("remote: encoding %s request failed: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return Response{}, fmt.Errorf("remote: building %s request failed: %w", op, err)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.Error(err))
		return Response{}, &Error{Op: op, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.logger.Debug("request done",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		return Response{}, &Error{Op: op, Status: resp.StatusCode, Reason: err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &Error{Op: op, Status: resp.StatusCode, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Response{}, &Error{Op: op, Status: resp.StatusCode, Reason: "malformed response", Err: err}
	}
	if !envelope.Success {
		return envelope, &Error{Op: op, Status: resp.StatusCode, Reason: firstNonEmpty(envelope.Error, envelope.Message, "request was not successful")}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return envelope, &Error{Op: op, Status: resp.StatusCode, Reason: "malformed response", Err: err}
		}
	}
	return envelope, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
