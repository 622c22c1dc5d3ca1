package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenClient_customerByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/customers/42", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id": 42, "first_name": "Sara", "last_name": "Ahmadi",
			"billing": map[string]string{"phone": "09120000000"},
		})
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "tok-123", &http.Client{Timeout: 2 * time.Second})
	cust, err := c.CustomerByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, &Customer{ID: 42, FirstName: "Sara", LastName: "Ahmadi", Phone: "09120000000"}, cust)
}

func TestBasicClient_authQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ck", r.URL.Query().Get("consumer_key"))
		assert.Equal(t, "cs", r.URL.Query().Get("consumer_secret"))
		json.NewEncoder(w).Encode(map[string]any{"id": 7})
	}))
	defer srv.Close()

	c := NewBasicClient(srv.URL, "ck", "cs", &http.Client{Timeout: 2 * time.Second})
	cust, err := c.CustomerByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cust.ID)
}

func TestCustomerByPhone_existing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "09120000000", r.URL.Query().Get("search"))
		json.NewEncoder(w).Encode([]map[string]any{{
			"id": 9, "first_name": "Reza",
			"billing": map[string]string{"phone": "09120000000"},
		}})
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "tok", &http.Client{Timeout: 2 * time.Second})
	cust, err := c.CustomerByPhone(context.Background(), "09120000000")
	require.NoError(t, err)
	assert.Equal(t, int64(9), cust.ID)
	assert.Equal(t, "Reza", cust.FirstName)
}

func TestCustomerByPhone_createsWhenMissing(t *testing.T) {
	var createdBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{})
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"id": 100, "billing": map[string]string{"phone": "09120000000"},
			})
		}
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "tok", &http.Client{Timeout: 2 * time.Second})
	cust, err := c.CustomerByPhone(context.Background(), "09120000000")
	require.NoError(t, err)
	assert.Equal(t, int64(100), cust.ID)
	assert.Equal(t, "09120000000", createdBody["username"])
}

func TestCustomerByID_notFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "tok", &http.Client{Timeout: 2 * time.Second})
	_, err := c.CustomerByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
