// REST API CLIENT FOR OANDA V20 FX ACCOUNTS
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/model"
)

// BrokerAPI is the surface the execution pipeline needs from a broker.
// The production implementation is OandaClient; tests substitute stubs.
type BrokerAPI interface {
	GetCandles(ctx context.Context, instrument, granularity string, count int) (*CandlesResponse, error)
	CreateMarketOrder(ctx context.Context, order *model.Order) (*model.OrderAck, error)
	GetAccountSummary(ctx context.Context) (*AccountSummary, error)
}

// -----------------------------
// A) RESPONSE STRUCTURES
// -----------------------------

// CandlestickData holds the venue's string-encoded prices. Normalizing
// them to floats is the market data gateway's job, not the client's.
type CandlestickData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type Candlestick struct {
	Complete bool            `json:"complete"`
	Volume   int64           `json:"volume"`
	Time     time.Time       `json:"time"`
	Mid      CandlestickData `json:"mid"`
}

type CandlesResponse struct {
	Instrument  string        `json:"instrument"`
	Granularity string        `json:"granularity"`
	Candles     []Candlestick `json:"candles"`
}

type AccountSummary struct {
	ID              string `json:"id"`
	Currency        string `json:"currency"`
	Balance         string `json:"balance"`
	NAV             string `json:"NAV"`
	MarginAvailable string `json:"marginAvailable"`
	OpenTradeCount  int    `json:"openTradeCount"`
}

type accountSummaryResponse struct {
	Account AccountSummary `json:"account"`
}

type createOrderResponse struct {
	OrderCreateTransaction *struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`

	OrderFillTransaction *struct {
		ID          string `json:"id"`
		Price       string `json:"price"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`

	OrderCancelTransaction *struct {
		OrderID string `json:"orderID"`
		Reason  string `json:"reason"`
	} `json:"orderCancelTransaction"`

	ErrorMessage string `json:"errorMessage"`
}

// -----------------------------
// B) AUTHENTICATED CLIENT
// -----------------------------
type OandaClient struct {
	token     string
	accountID string
	baseURL   string
	http      *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// NewOandaClient builds a client bound to one account and one
// environment. Terminal statuses (401, 403, 4xx rejections) are never
// retried; transient ones back off up to the configured cap.
func NewOandaClient(token, accountID, environment string) *OandaClient {
	config := GetConfig()

	baseURL := config.PracticeBaseURL
	if environment == model.EnvironmentLive {
		baseURL = config.LiveBaseURL
	}

	return newOandaClient(token, accountID, baseURL, config)
}

func newOandaClient(token, accountID, baseURL string, config Config) *OandaClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(config.RequestTimeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryBaseDelay).
		SetRetryMaxWaitTime(config.RetryMaxDelay).
		AddRetryCondition(isRetryableResp).
		AddRetryHook(func(r *resty.Response, err error) {
			entry := logger.WithError(err)
			if r != nil && r.Request != nil {
				entry = entry.WithFields(map[string]interface{}{
					"attempt": r.Request.Attempt,
					"status":  r.StatusCode(),
					"url":     r.Request.URL,
				})
			}
			entry.Warn("Retrying broker request")
		}).
		SetAuthToken(token)

	return &OandaClient{
		token:     token,
		accountID: accountID,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

// -----------------------------
// C) MARKET DATA METHODS
// -----------------------------
func (c *OandaClient) GetCandles(ctx context.Context, instrument, granularity string, count int) (*CandlesResponse, error) {
	var parsed CandlesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"granularity": granularity,
			"count":       strconv.Itoa(count),
			"price":       "M",
		}).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/instruments/%s/candles", instrument))

	if err != nil {
		return nil, &APIError{Body: err.Error(), kind: ErrNetwork}
	}
	if resp.StatusCode() != 200 {
		return nil, classifyStatus(resp.StatusCode(), string(resp.Body()))
	}

	return &parsed, nil
}

// -----------------------------
// D) TRADING METHODS
// -----------------------------

// formatDistance renders a price distance the way the venue expects,
// five decimal places.
func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', 5, 64)
}

func (c *OandaClient) CreateMarketOrder(ctx context.Context, order *model.Order) (*model.OrderAck, error) {
	body := map[string]interface{}{
		"type":         "MARKET",
		"instrument":   order.Instrument,
		"units":        strconv.Itoa(order.Units),
		"timeInForce":  order.TimeInForce,
		"positionFill": "DEFAULT",
	}
	if order.ClientID != "" {
		body["clientExtensions"] = map[string]interface{}{"id": order.ClientID}
	}
	if order.StopLossDistance > 0 {
		body["stopLossOnFill"] = map[string]interface{}{"distance": formatDistance(order.StopLossDistance)}
	}
	if order.TakeProfitDistance > 0 {
		body["takeProfitOnFill"] = map[string]interface{}{"distance": formatDistance(order.TakeProfitDistance)}
	}

	var parsed createOrderResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{"order": body}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("/v3/accounts/%s/orders", c.accountID))

	if err != nil {
		return nil, &APIError{Body: err.Error(), kind: ErrNetwork}
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return nil, classifyStatus(resp.StatusCode(), string(resp.Body()))
	}

	// A 201 with a cancel transaction means the venue accepted the
	// request but refused the fill (insufficient margin, halted
	// instrument). Treat it the same as an explicit rejection.
	if parsed.OrderCancelTransaction != nil {
		logger.WithFields(map[string]interface{}{
			"instrument": order.Instrument,
			"units":      order.Units,
			"reason":     parsed.OrderCancelTransaction.Reason,
		}).Error("Market order cancelled by venue")
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Body:       parsed.OrderCancelTransaction.Reason,
			kind:       ErrRejected,
		}
	}
	if parsed.OrderFillTransaction == nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Body:       "no fill transaction in response",
			kind:       ErrRejected,
		}
	}

	ack := &model.OrderAck{
		OrderID: parsed.OrderFillTransaction.ID,
		Price:   0,
	}
	if parsed.OrderCreateTransaction != nil {
		ack.OrderID = parsed.OrderCreateTransaction.ID
	}
	if parsed.OrderFillTransaction.TradeOpened != nil {
		ack.TradeID = parsed.OrderFillTransaction.TradeOpened.TradeID
	}
	if price, perr := strconv.ParseFloat(parsed.OrderFillTransaction.Price, 64); perr == nil {
		ack.Price = price
	}

	logger.WithFields(map[string]interface{}{
		"instrument": order.Instrument,
		"units":      order.Units,
		"order_id":   ack.OrderID,
		"trade_id":   ack.TradeID,
		"price":      ack.Price,
	}).Info("Market order filled")

	return ack, nil
}

// -----------------------------
// E) ACCOUNT METHODS
// -----------------------------

// GetAccountSummary doubles as the connection liveness probe: a
// successful call proves both reachability and valid credentials.
func (c *OandaClient) GetAccountSummary(ctx context.Context) (*AccountSummary, error) {
	var parsed accountSummaryResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get(fmt.Sprintf("/v3/accounts/%s/summary", c.accountID))

	if err != nil {
		return nil, &APIError{Body: err.Error(), kind: ErrNetwork}
	}
	if resp.StatusCode() != 200 {
		return nil, classifyStatus(resp.StatusCode(), string(resp.Body()))
	}

	return &parsed.Account, nil
}
