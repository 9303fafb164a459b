package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	bybitapi "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	appconfig "triflow/config"
	ratemetrics "triflow/internal/metrics/rate"
	"triflow/logger"
	"triflow/models"
)

const (
	endpointInstruments = "instruments"
	endpointOrderbook   = "orderbook"
	endpointWallet      = "wallet"

	maxInstrumentPages = 20
)

// APIError is a response whose retCode is non-zero.
type APIError struct {
	Endpoint string
	Code     int
	Message  string
	Limit    ratemetrics.Limit
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode=%d retMsg=%s", e.Endpoint, e.Code, e.Message)
}

// restAPI is the slice of the Bybit v5 REST surface the client uses.
type restAPI interface {
	call(ctx context.Context, endpoint string, params map[string]interface{}) (*bybitapi.ServerResponse, error)
}

type sdkAPI struct {
	client *bybitapi.Client
}

func (a sdkAPI) call(ctx context.Context, endpoint string, params map[string]interface{}) (*bybitapi.ServerResponse, error) {
	req := a.client.NewUtaBybitServiceWithParams(params)
	switch endpoint {
	case endpointInstruments:
		return req.GetInstrumentInfo(ctx)
	case endpointOrderbook:
		return req.GetOrderBookInfo(ctx)
	case endpointWallet:
		return req.GetAccountWallet(ctx)
	default:
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}
}

// Client is the single shared market-data and account client. Every call
// waits on one rate limiter, so the aggregate request rate stays bounded no
// matter how many triangles are evaluated concurrently.
type Client struct {
	api       restAPI
	limiter   *rate.Limiter
	transport *http.Transport
	category  string
	depth     int
	log       *logger.Log
}

// NewClient creates a Bybit client over a pooled HTTP transport.
func NewClient(cfg appconfig.ExchangeConfig) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
	}
	httpClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}

	sdk := bybitapi.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybitapi.WithBaseURL(cfg.BaseURL))
	sdk.HTTPClient = httpClient

	c := newClient(sdkAPI{client: sdk}, cfg)
	c.transport = transport

	log.WithComponent("bybit_client").WithFields(logger.Fields{
		"base_url": cfg.BaseURL,
		"category": c.category,
		"rps":      cfg.RateLimit.RequestsPerSecond,
		"timeout":  cfg.Timeout,
	}).Info("bybit client initialized")

	return c
}

func newClient(api restAPI, cfg appconfig.ExchangeConfig) *Client {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	category := cfg.Category
	if category == "" {
		category = "spot"
	}
	depth := cfg.OrderbookDepth
	if depth <= 0 {
		depth = 50
	}
	return &Client{
		api:      api,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		category: category,
		depth:    depth,
		log:      logger.GetLogger(),
	}
}

func (c *Client) do(ctx context.Context, endpoint string, params map[string]interface{}) (*bybitapi.ServerResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.api.call(ctx, endpoint, params)
	if err != nil {
		ratemetrics.ReportLimit(c.log, endpoint, 0, err.Error())
		return nil, fmt.Errorf("bybit %s: %w", endpoint, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("bybit %s: empty response", endpoint)
	}
	if resp.RetCode != 0 {
		return nil, &APIError{
			Endpoint: endpoint,
			Code:     resp.RetCode,
			Message:  resp.RetMsg,
			Limit:    ratemetrics.ReportLimit(c.log, endpoint, resp.RetCode, resp.RetMsg),
		}
	}
	logger.LogPerformanceEntry(c.log.WithComponent("bybit_client"), "bybit_client", endpoint, time.Since(start), nil)
	return resp, nil
}

// ListSymbols returns every trading symbol of the configured category.
func (c *Client) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	var out []models.Symbol
	cursor := ""
	for page := 0; page < maxInstrumentPages; page++ {
		params := map[string]interface{}{"category": c.category}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp, err := c.do(ctx, endpointInstruments, params)
		if err != nil {
			return nil, err
		}
		var payload instrumentsPayload
		if err := decodeResult(resp.Result, &payload); err != nil {
			return nil, fmt.Errorf("bybit instruments: %w", err)
		}
		out = append(out, payload.symbols()...)
		if payload.NextPageCursor == "" || payload.NextPageCursor == cursor {
			return out, nil
		}
		cursor = payload.NextPageCursor
	}
	return out, nil
}

// FetchOrderBook returns both sides of symbol's book, best price first.
func (c *Client) FetchOrderBook(ctx context.Context, symbol models.Symbol) (models.OrderBook, error) {
	resp, err := c.do(ctx, endpointOrderbook, map[string]interface{}{
		"category": c.category,
		"symbol":   symbol.Name,
		"limit":    c.depth,
	})
	if err != nil {
		return models.OrderBook{}, err
	}
	var payload orderbookPayload
	if err := decodeResult(resp.Result, &payload); err != nil {
		return models.OrderBook{}, fmt.Errorf("bybit orderbook %s: %w", symbol.Name, err)
	}
	book, err := payload.book(symbol)
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("bybit orderbook %s: %w", symbol.Name, err)
	}
	return book, nil
}

// FetchBalances returns the total wallet balance per currency of the unified account.
func (c *Client) FetchBalances(ctx context.Context) (map[string]float64, error) {
	resp, err := c.do(ctx, endpointWallet, map[string]interface{}{"accountType": "UNIFIED"})
	if err != nil {
		return nil, err
	}
	var payload walletPayload
	if err := decodeResult(resp.Result, &payload); err != nil {
		return nil, fmt.Errorf("bybit wallet: %w", err)
	}
	totals, err := payload.totals()
	if err != nil {
		return nil, fmt.Errorf("bybit wallet: %w", err)
	}
	return totals, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.log.WithComponent("bybit_client").Info("bybit client closed")
	return nil
}

// IsRateLimited reports whether err came from exchange throttling.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Limit != ratemetrics.LimitNone
}
