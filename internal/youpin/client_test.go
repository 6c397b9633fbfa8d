package youpin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/pacing"
	"github.com/skinarb/skinarb/pkg/types"
)

func newTestClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()

	store, err := credentials.New(&credentials.Config{
		Path:   filepath.Join(t.TempDir(), "tokens_config.json"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NoError(t, store.UpdateYoupin(credentials.YoupinCredentials{
		DeviceID:      "device-1",
		DeviceUK:      "deviceuk-1",
		UK:            "uk-1",
		B3:            "aaaabbbbccccdddd-1111222233334444-1",
		Authorization: "Bearer token-1",
	}))

	pacer, err := pacing.New(&pacing.Config{
		Marketplace: "youpin",
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	return New(&Config{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    maxAttempts,
		BackoffBase:    1 * time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		Pacer:          pacer,
		Credentials:    store,
		Logger:         zap.NewNop(),
	})
}

const salePage = `{
	"Code": 0,
	"Msg": "",
	"Data": [
		{
			"Id": 9001,
			"CommodityName": "AK-47 | Redline (Field-Tested)",
			"CommodityHashName": "AK-47 | Redline (Field-Tested)",
			"Price": "130.50",
			"OnSaleCount": 17,
			"IconUrl": "https://cdn.example/ak47.png"
		},
		{
			"Id": 9002,
			"CommodityName": "Numeric Price",
			"CommodityHashName": "Numeric Price",
			"Price": 42.5,
			"OnSaleCount": 3,
			"IconUrl": ""
		}
	]
}`

func TestFetchPageParsesListings(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/homepage/pc/goods/market/querySaleTemplate", r.URL.Path)
		gotHeaders = r.Header.Clone()

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(salePage))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)

	page, err := c.FetchPage(context.Background(), 3, 100)
	require.NoError(t, err)

	assert.Equal(t, "device-1", gotHeaders.Get("DeviceId"))
	assert.Equal(t, "uk-1", gotHeaders.Get("Uk"))
	assert.Equal(t, "Bearer token-1", gotHeaders.Get("Authorization"))
	assert.Equal(t, "aaaabbbbccccdddd-1111222233334444-1", gotHeaders.Get("B3"))
	assert.Equal(t, "00-aaaabbbbccccdddd-1111222233334444-01", gotHeaders.Get("TraceParent"))
	assert.Equal(t, "6.12.0", gotHeaders.Get("App-Version"))
	assert.Equal(t, "pc", gotHeaders.Get("Platform"))

	assert.EqualValues(t, 3, gotBody["pageIndex"])
	assert.EqualValues(t, 100, gotBody["pageSize"])
	assert.EqualValues(t, 0, gotBody["listSortType"])

	// Both string and numeric price encodings are accepted
	require.Len(t, page.Items, 2)
	assert.Equal(t, "9001", page.Items[0].ID)
	assert.InDelta(t, 130.50, page.Items[0].Price, 1e-9)
	assert.Equal(t, 17, page.Items[0].SellCount)
	assert.InDelta(t, 42.5, page.Items[1].Price, 1e-9)

	// No advertised total; the walk stops on the first empty page instead
	assert.Equal(t, 0, page.TotalPages)
}

func TestFetchPageUnauthorizedRetriesOnceThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)

	_, err := c.FetchPage(context.Background(), 1, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuthFailed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPageRetriesApiErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 2 {
			_, _ = w.Write([]byte(`{"Code": 84101, "Msg": "system busy"}`))
			return
		}
		_, _ = w.Write([]byte(salePage))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)

	page, err := c.FetchPage(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPageRateLimitedExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)

	_, err := c.FetchPage(context.Background(), 1, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRateLimited)
	assert.Equal(t, int32(2), calls.Load())
}
