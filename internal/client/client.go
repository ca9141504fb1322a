// Package client is a small Go client for the signup API. It validates forms
// locally before sending them, mirroring what the browser front end does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bossnet/party-signup/internal/model"
)

// ErrPrecheckFailed is returned by Register when the advisory validation
// rejects the form; the request is not sent.
var ErrPrecheckFailed = errors.New("form failed local validation")

// Form is the data a registrant fills in.
type Form struct {
	Nickname   string
	Email      string
	TicketType string
	Shirt      bool
	Pizza      bool
	Drinks     bool
	Guests     int
	Consent    bool
	// LoadedAt is when the form became interactive. Zero omits the
	// timestamp from the payload.
	LoadedAt time.Time
}

// Payload renders the form as the JSON body the API expects, including the
// empty honeypot fields.
func (f Form) Payload() model.Submission {
	p := model.Submission{
		model.FieldNickname:   f.Nickname,
		model.FieldEmail:      f.Email,
		model.FieldTicketType: f.TicketType,
		model.FieldShirt:      f.Shirt,
		model.FieldPizza:      f.Pizza,
		model.FieldDrinks:     f.Drinks,
		model.FieldGuests:     f.Guests,
		model.FieldConsent:    f.Consent,
	}
	for _, hp := range model.HoneypotFields {
		p[hp] = ""
	}
	if !f.LoadedAt.IsZero() {
		p[model.FieldFormLoadTime] = f.LoadedAt.UnixMilli()
	}
	return p
}

// PrecheckError carries the advisory hints that blocked a submission.
type PrecheckError struct {
	Hints []string
}

func (e *PrecheckError) Error() string {
	return "precheck: " + strings.Join(e.Hints, "; ")
}

func (e *PrecheckError) Unwrap() error { return ErrPrecheckFailed }

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Details []string
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("api %d: %s (%s)", e.Status, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Client talks to a running signup server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New constructs a Client for baseURL (e.g. "http://localhost:5177").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register prechecks f and, if it passes, submits it.
func (c *Client) Register(ctx context.Context, f Form) (*model.RegisterResponse, error) {
	if hints := Precheck(f); len(hints) > 0 {
		return nil, &PrecheckError{Hints: hints}
	}

	body, err := json.Marshal(f.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/register", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out model.RegisterResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Participants fetches the public participant list. token may be empty.
func (c *Client) Participants(ctx context.Context, token string) ([]model.PublicRegistration, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/registrations", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var out []model.PublicRegistration
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health calls the health probe.
func (c *Client) Health(ctx context.Context) (*model.HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	var out model.HealthResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var env model.ValidationErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Details: env.Details}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
