// Package binance implements the futures REST client the trading cycle
// depends on: market data, account state, leverage and market orders.
package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Retry configuration for API calls
const (
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

const (
	// BaseURL is the production Binance Futures API URL
	BaseURL = "https://fapi.binance.com"
	// TestnetURL is the testnet Binance Futures API URL
	TestnetURL = "https://testnet.binancefuture.com"
)

// Exchange is the collaborator contract consumed by the snapshot assembler
// and the trade executor. SetLeverage is best-effort at call sites.
type Exchange interface {
	GetCurrentPrice(symbol string) (float64, error)
	Get24hrTicker(symbol string) (*Ticker24hr, error)
	GetKlines(symbol, interval string, limit int) ([]Kline, error)
	GetOpenInterest(symbol string) (float64, error)
	GetFundingRate(symbol string) (float64, error)
	GetBalance() (*Balance, error)
	GetPosition(symbol string) (*Position, error)
	SetLeverage(symbol string, leverage int) error
	PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error)
}

// Client implements Exchange against the Binance USDT-M futures REST API.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a futures REST client. An empty baseURL selects the
// production endpoint, or the testnet endpoint when testnet is set.
func NewClient(apiKey, secretKey, baseURL string, testnet bool, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = BaseURL
		if testnet {
			baseURL = TestnetURL
		}
	}

	// Trim any whitespace from keys - critical for signature generation
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "binance").Logger(),
	}
}

// NormalizeSymbol maps a bare asset name to its USDT perpetual pair.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(s, "USDT") {
		s += "USDT"
	}
	return s
}

// ==================== MARKET DATA ====================

// GetCurrentPrice retrieves the latest traded price for a symbol.
func (c *Client) GetCurrentPrice(symbol string) (float64, error) {
	resp, err := c.publicGet("/fapi/v1/ticker/price", map[string]string{
		"symbol": NormalizeSymbol(symbol),
	})
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(resp, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// Get24hrTicker retrieves 24 hour price change statistics for a symbol.
func (c *Client) Get24hrTicker(symbol string) (*Ticker24hr, error) {
	resp, err := c.publicGet("/fapi/v1/ticker/24hr", map[string]string{
		"symbol": NormalizeSymbol(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching 24hr ticker: %w", err)
	}

	var ticker Ticker24hr
	if err := json.Unmarshal(resp, &ticker); err != nil {
		return nil, fmt.Errorf("error parsing 24hr ticker: %w", err)
	}

	return &ticker, nil
}

// GetKlines retrieves candlestick data, oldest first.
func (c *Client) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	resp, err := c.publicGet("/fapi/v1/klines", map[string]string{
		"symbol":   NormalizeSymbol(symbol),
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(resp, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 7 {
			return nil, fmt.Errorf("malformed kline entry at index %d", i)
		}
		klines[i] = Kline{
			OpenTime:  int64(toFloat(raw[0])),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
			CloseTime: int64(toFloat(raw[6])),
		}
	}

	return klines, nil
}

// GetOpenInterest retrieves the current open interest for a symbol.
func (c *Client) GetOpenInterest(symbol string) (float64, error) {
	resp, err := c.publicGet("/fapi/v1/openInterest", map[string]string{
		"symbol": NormalizeSymbol(symbol),
	})
	if err != nil {
		return 0, fmt.Errorf("error fetching open interest: %w", err)
	}

	var oi rawOpenInterest
	if err := json.Unmarshal(resp, &oi); err != nil {
		return 0, fmt.Errorf("error parsing open interest: %w", err)
	}

	return oi.OpenInterest, nil
}

// GetFundingRate retrieves the latest funding rate for a symbol.
func (c *Client) GetFundingRate(symbol string) (float64, error) {
	resp, err := c.publicGet("/fapi/v1/premiumIndex", map[string]string{
		"symbol": NormalizeSymbol(symbol),
	})
	if err != nil {
		return 0, fmt.Errorf("error fetching funding rate: %w", err)
	}

	var premium rawPremiumIndex
	if err := json.Unmarshal(resp, &premium); err != nil {
		return 0, fmt.Errorf("error parsing funding rate: %w", err)
	}

	return premium.LastFundingRate, nil
}

// ==================== ACCOUNT ====================

// GetBalance fetches the USDT wallet and available balance.
func (c *Client) GetBalance() (*Balance, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}

	resp, err := c.signedGet("/fapi/v2/account", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching account info: %w", err)
	}

	var accountInfo rawAccountInfo
	if err := json.Unmarshal(resp, &accountInfo); err != nil {
		return nil, fmt.Errorf("error parsing account info: %w", err)
	}

	for _, asset := range accountInfo.Assets {
		if asset.Asset == "USDT" {
			return &Balance{
				Total:     asset.WalletBalance,
				Available: asset.AvailableBalance,
			}, nil
		}
	}

	// No USDT asset on the account
	return &Balance{}, nil
}

// GetPosition retrieves the position snapshot for a symbol. A symbol with
// no exposure comes back as a flat position, not an error.
func (c *Client) GetPosition(symbol string) (*Position, error) {
	normalized := NormalizeSymbol(symbol)
	params := map[string]string{
		"symbol":    normalized,
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}

	resp, err := c.signedGet("/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching position: %w", err)
	}

	var positions []rawPosition
	if err := json.Unmarshal(resp, &positions); err != nil {
		return nil, fmt.Errorf("error parsing position: %w", err)
	}

	// In hedge mode there can be two rows; pick the one with exposure.
	for _, p := range positions {
		if p.PositionAmt != 0 {
			pos := &Position{
				Symbol:        p.Symbol,
				Contracts:     p.PositionAmt,
				EntryPrice:    p.EntryPrice,
				UnrealizedPnL: p.UnRealizedProfit,
				Leverage:      p.Leverage,
			}
			pos.Side = pos.Direction()
			return pos, nil
		}
	}

	return &Position{Symbol: normalized, Side: PositionSideFlat}, nil
}

// ==================== TRADING ====================

// SetLeverage sets the leverage for a symbol.
func (c *Client) SetLeverage(symbol string, leverage int) error {
	params := map[string]string{
		"symbol":    NormalizeSymbol(symbol),
		"leverage":  strconv.Itoa(leverage),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}

	if _, err := c.signedPost("/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("error setting leverage: %w", err)
	}

	return nil
}

// PlaceMarketOrder submits a MARKET order. Side is "BUY" or "SELL".
func (c *Client) PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error) {
	params := map[string]string{
		"symbol":    NormalizeSymbol(symbol),
		"side":      strings.ToUpper(side),
		"type":      "MARKET",
		"quantity":  strconv.FormatFloat(quantity, 'f', -1, 64),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}

	resp, err := c.signedPost("/fapi/v1/order", params)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	return &orderResp, nil
}

// ==================== HTTP HELPERS ====================

// buildQueryString builds a query string from params (without signature)
func (c *Client) buildQueryString(params map[string]string) string {
	query := ""
	for k, v := range params {
		if k != "signature" {
			if query != "" {
				query += "&"
			}
			query += k + "=" + url.QueryEscape(v)
		}
	}
	return query
}

// sign creates a signature for the given query string
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// signParams builds query string with signature appended
func (c *Client) signParams(params map[string]string) string {
	query := c.buildQueryString(params)
	signature := c.sign(query)
	return query + "&signature=" + signature
}

// publicGet performs an unauthenticated GET request with retry
func (c *Client) publicGet(endpoint string, params map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}

		reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)
		if len(values) > 0 {
			reqURL = fmt.Sprintf("%s?%s", reqURL, values.Encode())
		}

		resp, err := c.httpClient.Get(reqURL)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.logger.Warn().Err(err).Str("endpoint", endpoint).
					Int("attempt", attempt+1).Dur("retry_in", delay).
					Msg("public GET failed, retrying")
				time.Sleep(delay)
				continue
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API error: %s", string(body))
			if isRetryableError(resp.StatusCode, string(body)) && attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.logger.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).
					Int("attempt", attempt+1).Dur("retry_in", delay).
					Msg("public GET returned error, retrying")
				time.Sleep(delay)
				continue
			}
			return nil, lastErr
		}

		return body, nil
	}

	return nil, lastErr
}

// signedGet performs an authenticated GET request with retry logic
func (c *Client) signedGet(endpoint string, params map[string]string) ([]byte, error) {
	return c.signedRequest(http.MethodGet, endpoint, params)
}

// signedPost performs an authenticated POST request with retry logic
func (c *Client) signedPost(endpoint string, params map[string]string) ([]byte, error) {
	return c.signedRequest(http.MethodPost, endpoint, params)
}

func (c *Client) signedRequest(method, endpoint string, params map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Refresh timestamp for each attempt and set recvWindow for clock skew tolerance
		params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
		params["recvWindow"] = "10000"
		query := c.signParams(params)
		reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, query)

		req, err := http.NewRequest(method, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.logger.Warn().Err(err).Str("method", method).Str("endpoint", endpoint).
					Int("attempt", attempt+1).Dur("retry_in", delay).
					Msg("signed request failed, retrying")
				time.Sleep(delay)
				continue
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API error: %s", string(body))
			if isRetryableError(resp.StatusCode, string(body)) && attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.logger.Warn().Int("status", resp.StatusCode).Str("method", method).
					Str("endpoint", endpoint).Int("attempt", attempt+1).Dur("retry_in", delay).
					Msg("signed request returned error, retrying")
				time.Sleep(delay)
				continue
			}
			return nil, lastErr
		}

		return body, nil
	}

	return nil, lastErr
}

// isRetryableError checks if an error is transient and should be retried
func isRetryableError(statusCode int, body string) bool {
	// Retry on rate limits (429/418) and server errors (5xx)
	if statusCode == http.StatusTooManyRequests || statusCode == 418 || statusCode >= 500 {
		return true
	}
	// Retry on specific Binance errors that are transient
	if strings.Contains(body, "-1001") || // DISCONNECTED
		strings.Contains(body, "-1003") || // TOO_MANY_REQUESTS
		strings.Contains(body, "-1015") || // TOO_MANY_ORDERS
		strings.Contains(body, "-1016") { // SERVICE_SHUTTING_DOWN
		return true
	}
	return false
}

// calculateRetryDelay returns delay with exponential backoff and jitter
func calculateRetryDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt)) // 2^attempt
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add jitter (±25%)
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return delay + jitter - (delay / 4)
}

// parseFloat converts a string field from the raw kline payload.
func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
