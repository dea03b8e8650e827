package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forwardtester/src/model"
)

func testConfig() Config {
	return Config{
		RequestTimeout: 2 * time.Second,
		RetryCount:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
}

func TestGetCandlesRetriesTransientFailures(t *testing.T) {
	var calls int32

	hook := logtest.NewGlobal()
	defer hook.Reset()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"instrument": "EUR_USD",
			"granularity": "M5",
			"candles": [
				{"complete": true, "volume": 120, "time": "2025-03-04T10:00:00Z",
				 "mid": {"o": "1.08120", "h": "1.08190", "l": "1.08085", "c": "1.08150"}}
			]
		}`))
	}))
	defer server.Close()

	client := newOandaClient("token", "001-001-1234567-001", server.URL, testConfig())

	resp, err := client.GetCandles(context.Background(), "EUR_USD", "M5", 500)
	require.NoError(t, err)
	require.Len(t, resp.Candles, 1)

	assert.Equal(t, "EUR_USD", resp.Instrument)
	assert.Equal(t, "1.08150", resp.Candles[0].Mid.C)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	// Every retry leaves its own trace entry.
	retryTraces := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Retrying broker request" {
			retryTraces++
		}
	}
	assert.Equal(t, 3, retryTraces, "expected one trace per retry attempt")
}

func TestGetCandlesGivesUpAfterRetryBudget(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newOandaClient("token", "001-001-1234567-001", server.URL, testConfig())

	_, err := client.GetCandles(context.Background(), "EUR_USD", "M5", 500)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestAuthFailureIsTerminal(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage": "Insufficient authorization to perform request."}`))
	}))
	defer server.Close()

	client := newOandaClient("bad-token", "001-001-1234567-001", server.URL, testConfig())

	_, err := client.GetAccountSummary(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrAuth))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "terminal errors must not be retried")
}

func TestCreateMarketOrderParsesFill(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/accounts/001-001-1234567-001/orders", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"orderCreateTransaction": {"id": "6367"},
			"orderFillTransaction": {"id": "6368", "price": "1.08152", "tradeOpened": {"tradeID": "6368"}}
		}`))
	}))
	defer server.Close()

	client := newOandaClient("token", "001-001-1234567-001", server.URL, testConfig())

	ack, err := client.CreateMarketOrder(context.Background(), &model.Order{
		Instrument:         "EUR_USD",
		Units:              1000,
		StopLossDistance:   0.0020,
		TakeProfitDistance: 0.0040,
		TimeInForce:        "FOK",
		ClientID:           "ft-abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "6367", ack.OrderID)
	assert.Equal(t, "6368", ack.TradeID)
	assert.InDelta(t, 1.08152, ack.Price, 1e-9)
}

func TestCreateMarketOrderVenueRejection(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"orderCreateTransaction": {"id": "7001"},
			"orderCancelTransaction": {"orderID": "7001", "reason": "INSUFFICIENT_MARGIN"}
		}`))
	}))
	defer server.Close()

	client := newOandaClient("token", "001-001-1234567-001", server.URL, testConfig())

	_, err := client.CreateMarketOrder(context.Background(), &model.Order{
		Instrument:  "EUR_USD",
		Units:       500000,
		TimeInForce: "FOK",
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INSUFFICIENT_MARGIN", apiErr.Body)
}
