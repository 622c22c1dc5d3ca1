package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Customer is the slice of the commerce API's customer object this core needs.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Phone     string
}

// ErrNotFound reports that no customer matched the lookup.
var ErrNotFound = errors.New("customer not found")

// CustomerSource looks customers up in the commerce API. Two implementations
// exist, selected at construction time: TokenClient speaks to the shared API
// helper with a bearer token, BasicClient falls back to raw key/secret
// authenticated calls.
type CustomerSource interface {
	// CustomerByID fetches the customer profile for enrichment.
	CustomerByID(ctx context.Context, id int64) (*Customer, error)
	// CustomerByPhone finds the customer for a verified phone number,
	// creating one when none exists.
	CustomerByPhone(ctx context.Context, phone string) (*Customer, error)
}

const customersPath = "/wp-json/wc/v3/customers"

// customerPayload mirrors the commerce API's customer JSON.
type customerPayload struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Billing   struct {
		Phone string `json:"phone"`
	} `json:"billing"`
}

func (p customerPayload) toCustomer() *Customer {
	return &Customer{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Billing.Phone,
	}
}

// TokenClient authenticates with a bearer token.
type TokenClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTokenClient creates a bearer-token commerce client.
func NewTokenClient(baseURL, token string, client *http.Client) *TokenClient {
	return &TokenClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

func (c *TokenClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// CustomerByID implements CustomerSource.
func (c *TokenClient) CustomerByID(ctx context.Context, id int64) (*Customer, error) {
	return fetchByID(ctx, c.client, c.baseURL, id, c.authorize)
}

// CustomerByPhone implements CustomerSource.
func (c *TokenClient) CustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	return fetchOrCreateByPhone(ctx, c.client, c.baseURL, phone, c.authorize)
}

// BasicClient authenticates with consumer key/secret query parameters, the
// raw fallback when no API token is provisioned.
type BasicClient struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
}

// NewBasicClient creates a key/secret commerce client.
func NewBasicClient(baseURL, key, secret string, client *http.Client) *BasicClient {
	return &BasicClient{baseURL: strings.TrimRight(baseURL, "/"), key: key, secret: secret, client: client}
}

func (c *BasicClient) authorize(req *http.Request) {
	q := req.URL.Query()
	q.Set("consumer_key", c.key)
	q.Set("consumer_secret", c.secret)
	req.URL.RawQuery = q.Encode()
}

// CustomerByID implements CustomerSource.
func (c *BasicClient) CustomerByID(ctx context.Context, id int64) (*Customer, error) {
	return fetchByID(ctx, c.client, c.baseURL, id, c.authorize)
}

// CustomerByPhone implements CustomerSource.
func (c *BasicClient) CustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	return fetchOrCreateByPhone(ctx, c.client, c.baseURL, phone, c.authorize)
}

func fetchByID(ctx context.Context, client *http.Client, baseURL string, id int64, authorize func(*http.Request)) (*Customer, error) {
	u := fmt.Sprintf("%s%s/%d", baseURL, customersPath, id)

	var payload customerPayload
	status, err := doJSON(ctx, client, http.MethodGet, u, nil, &payload, authorize)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("commerce api returned status %d", status)
	}
	return payload.toCustomer(), nil
}

func fetchOrCreateByPhone(ctx context.Context, client *http.Client, baseURL string, phone string, authorize func(*http.Request)) (*Customer, error) {
	u := fmt.Sprintf("%s%s?%s", baseURL, customersPath, url.Values{
		"search": {phone},
		"role":   {"all"},
	}.Encode())

	var matches []customerPayload
	status, err := doJSON(ctx, client, http.MethodGet, u, nil, &matches, authorize)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("commerce api returned status %d", status)
	}
	if len(matches) > 0 {
		return matches[0].toCustomer(), nil
	}

	// No match: register the phone as a new customer.
	body := map[string]any{
		"username": phone,
		"billing":  map[string]string{"phone": phone},
	}
	var created customerPayload
	status, err = doJSON(ctx, client, http.MethodPost, baseURL+customersPath, body, &created, authorize)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("commerce api returned status %d on create", status)
	}
	return created.toCustomer(), nil
}

func doJSON(ctx context.Context, client *http.Client, method, u string, body any, out any, authorize func(*http.Request)) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("commerce api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
