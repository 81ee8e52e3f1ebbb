// Package clients is a typed HTTP client for the bloodlink API.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/donors"
	"bloodlink/internal/membership"
	"bloodlink/internal/requests"

	"github.com/google/uuid"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New returns a client for the API served at baseURL. A nil httpClient
// selects http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Session is the result of a successful login.
type Session struct {
	Token  string             `json:"token"`
	Person *membership.Person `json:"person"`
}

// Compatibility is the answer of the compatibility lookup endpoint.
type Compatibility struct {
	BloodGroup       string                     `json:"blood_group"`
	CompatibleDonors []compatibility.BloodGroup `json:"compatible_donors"`
	Explanation      string                     `json:"explanation"`
}

// HistoryEntry is one journaled transition of a request.
type HistoryEntry struct {
	Version   int             `json:"version"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

func (c *Client) Register(ctx context.Context, in membership.RegisterInput) (*membership.Person, error) {
	body := map[string]string{
		"name":        in.Name,
		"email":       in.Email,
		"password":    in.Password,
		"role":        in.Role,
		"blood_group": in.BloodGroup,
	}
	var person membership.Person
	if err := c.do(ctx, http.MethodPost, "/register", body, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// Login authenticates and, when role is not empty, asks the server to check
// that the account has that role.
func (c *Client) Login(ctx context.Context, email, password, role string) (*Session, error) {
	body := map[string]string{"email": email, "password": password, "role": role}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/login", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) Me(ctx context.Context) (*membership.Person, error) {
	var person membership.Person
	if err := c.do(ctx, http.MethodGet, "/me", nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

func (c *Client) BloodGroups(ctx context.Context) ([]compatibility.BloodGroup, error) {
	var groups []compatibility.BloodGroup
	if err := c.do(ctx, http.MethodGet, "/blood-groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) Compatibility(ctx context.Context, bloodGroup string) (*Compatibility, error) {
	var out Compatibility
	path := "/compatibility?blood_group=" + url.QueryEscape(bloodGroup)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompatibilityStats(ctx context.Context) (*compatibility.Statistics, error) {
	var stats compatibility.Statistics
	if err := c.do(ctx, http.MethodGet, "/compatibility/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) CreateRequest(ctx context.Context, bloodGroup string, units int) (*requests.BloodRequest, error) {
	body := map[string]any{"blood_group": bloodGroup, "units": units}
	var req requests.BloodRequest
	if err := c.do(ctx, http.MethodPost, "/requests", body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) ActiveRequests(ctx context.Context) ([]*requests.BloodRequest, error) {
	var out []*requests.BloodRequest
	if err := c.do(ctx, http.MethodGet, "/requests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRequest(ctx context.Context, id uuid.UUID) (*requests.BloodRequest, error) {
	var req requests.BloodRequest
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/requests/%s", id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) AcceptRequest(ctx context.Context, id uuid.UUID) (*requests.BloodRequest, error) {
	var req requests.BloodRequest
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/accept", id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) ConfirmRequest(ctx context.Context, id uuid.UUID) (*requests.BloodRequest, error) {
	var req requests.BloodRequest
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/confirm", id), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) RequestHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	var out []HistoryEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/requests/%s/history", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RequestDonors(ctx context.Context, id uuid.UUID) ([]*membership.Person, error) {
	var out []*membership.Person
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/requests/%s/donors", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyRequests(ctx context.Context) ([]*requests.BloodRequest, error) {
	var out []*requests.BloodRequest
	if err := c.do(ctx, http.MethodGet, "/me/requests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyDonations(ctx context.Context) ([]requests.DonationRecord, error) {
	var out []requests.DonationRecord
	if err := c.do(ctx, http.MethodGet, "/me/donations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Donors(ctx context.Context, bloodGroup string) ([]*membership.Person, error) {
	path := "/donors"
	if bloodGroup != "" {
		path += "?blood_group=" + url.QueryEscape(bloodGroup)
	}
	var out []*membership.Person
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DonorProfile(ctx context.Context, email string) (*donors.Profile, error) {
	var profile donors.Profile
	if err := c.do(ctx, http.MethodGet, "/donors/"+url.PathEscape(email), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
