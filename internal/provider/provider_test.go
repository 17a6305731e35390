package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, pages map[int]Page, wantToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}
		if wantToken != "" && r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		result, ok := pages[page]
		if !ok {
			result = Page{Page: page}
		}
		json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testRecord(desc string) Record {
	return Record{
		Date:        "2025-03-10",
		Amount:      "-1200.00",
		Currency:    "EUR",
		Description: desc,
	}
}

func TestClient_FetchPage(t *testing.T) {
	srv := newFeedServer(t, map[int]Page{
		1: {Transactions: []Record{testRecord("Office Rent")}, Page: 1, HasMore: false},
	}, "secret")

	client, err := NewClient(Config{BaseURL: srv.URL, APIToken: "secret", PageSize: 50})
	require.NoError(t, err)

	page, err := client.FetchPage(context.Background(), "2025-01-01", 1)

	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "Office Rent", page.Transactions[0].Description)
	assert.False(t, page.HasMore)
}

func TestClient_FetchPage_BadTokenFailsFast(t *testing.T) {
	srv := newFeedServer(t, nil, "secret")

	client, err := NewClient(Config{BaseURL: srv.URL, APIToken: "wrong"})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.FetchPage(context.Background(), "", 1)

	// auth failures must not burn the retry budget
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestClient_Healthy(t *testing.T) {
	srv := newFeedServer(t, nil, "")

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	assert.True(t, client.Healthy(context.Background()))
}

func TestFeed_WalksAllPages(t *testing.T) {
	srv := newFeedServer(t, map[int]Page{
		1: {Transactions: []Record{testRecord("one"), testRecord("two")}, Page: 1, HasMore: true},
		2: {Transactions: []Record{testRecord("three")}, Page: 2, HasMore: false},
	}, "")

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	feed := NewFeed(context.Background(), client, "")

	var descriptions []string
	var rows []int
	for {
		raw, row, done, err := feed.Next()
		require.NoError(t, err)
		if done {
			break
		}
		descriptions = append(descriptions, raw["description"])
		rows = append(rows, row)
	}

	assert.Equal(t, []string{"one", "two", "three"}, descriptions)
	assert.Equal(t, []int{1, 2, 3}, rows)
}

func TestFeed_EmptyFeed(t *testing.T) {
	srv := newFeedServer(t, map[int]Page{
		1: {Page: 1, HasMore: false},
	}, "")

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	feed := NewFeed(context.Background(), client, "")

	_, _, done, err := feed.Next()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestFeed_MapsAllFields(t *testing.T) {
	rec := Record{
		Date:             "2025-03-10",
		Amount:           "-42.50",
		Currency:         "USD",
		Description:      "Cloud Hosting",
		PayeeName:        "Hoster Inc",
		Merchant:         "HOSTER",
		PaymentReference: "INV-99",
	}
	srv := newFeedServer(t, map[int]Page{
		1: {Transactions: []Record{rec}, Page: 1, HasMore: false},
	}, "")

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	raw, _, done, err := NewFeed(context.Background(), client, "").Next()

	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, map[string]string{
		"date":              "2025-03-10",
		"amount":            "-42.50",
		"currency":          "USD",
		"description":       "Cloud Hosting",
		"payee_name":        "Hoster Inc",
		"merchant":          "HOSTER",
		"payment_reference": "INV-99",
	}, raw)
}
