// Package api provides the typed CryptoLytica platform client.
//
// A Client wraps the generic rest layer with accessors that decode and
// validate domain records, and exposes the real-time channel multiplexer
// for ticker subscriptions. It holds no UI concerns and fabricates no data:
// failures surface as typed errors for the caller to handle.
package api

import (
	"context"
	"fmt"
	"os"
	"strconv"

	json "github.com/bytedance/sonic"

	"github.com/cryptolytica/goclient/config"
	"github.com/cryptolytica/goclient/logger"
	"github.com/cryptolytica/goclient/rest"
	"github.com/cryptolytica/goclient/websocket"
)

// --------------------------------------------------------------------------------
// Types

// Client is the typed platform client.
type Client struct {
	rest   *rest.Client
	stream *websocket.Client
	logger logger.Interface
}

// Option defines a function to configure a Client instance.
type Option func(*clientOptions)

type clientOptions struct {
	logger logger.Interface
	debug  bool
}

// WithLogger sets the logger shared by the REST and WebSocket layers.
func WithLogger(l logger.Interface) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithDebug enables request/response tracing on the REST layer.
func WithDebug(debug bool) Option {
	return func(o *clientOptions) { o.debug = debug }
}

// --------------------------------------------------------------------------------
// Constructors

// New builds a Client from the given configuration.
//
// The WebSocket multiplexer is created only when a ws_url is configured;
// without one, ConnectStream fails with websocket.ErrNoEndpoint.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		l, err := logger.New("info", os.Stderr)
		if err != nil {
			return nil, err
		}

		o.logger = l
	}

	restc, err := rest.New(cfg.API.BaseURL,
		rest.WithAuth(cfg.API.Scheme(), cfg.API.APIKey),
		rest.WithLogger(o.logger),
		rest.WithDebug(o.debug),
	)
	if err != nil {
		return nil, err
	}

	c := &Client{rest: restc, logger: o.logger}

	if cfg.API.WSURL != "" {
		c.stream, err = websocket.New(cfg.API.WSURL,
			websocket.WithAPIKey(cfg.API.APIKey),
			websocket.WithLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// --------------------------------------------------------------------------------
// Accessors

// REST exposes the underlying request layer for endpoints without a typed
// accessor.
func (c *Client) REST() *rest.Client {
	return c.rest
}

// Stream exposes the channel multiplexer. It is nil when no ws_url is
// configured.
func (c *Client) Stream() *websocket.Client {
	return c.stream
}

// ConnectStream establishes the real-time connection.
func (c *Client) ConnectStream(ctx context.Context) error {
	if c.stream == nil {
		return websocket.ErrNoEndpoint
	}

	return c.stream.Connect(ctx)
}

// DisconnectStream closes the real-time connection.
func (c *Client) DisconnectStream() error {
	if c.stream == nil {
		return websocket.ErrNoEndpoint
	}

	return c.stream.Disconnect()
}

// --------------------------------------------------------------------------------
// System

// GetSystemStatus returns the platform status record.
func (c *Client) GetSystemStatus(ctx context.Context) (SystemStatus, error) {
	return getRecord[SystemStatus](c, ctx, "/api/status", nil)
}

// GetEvents returns the most recent platform events.
func (c *Client) GetEvents(ctx context.Context, limit int) ([]Event, error) {
	return getRecords[Event](c, ctx, "/api/events", limitQuery(limit))
}

// --------------------------------------------------------------------------------
// Exchanges

// GetExchanges returns the connected exchanges.
func (c *Client) GetExchanges(ctx context.Context) ([]Exchange, error) {
	return getRecords[Exchange](c, ctx, "/api/exchanges", nil)
}

// GetExchange returns one exchange by id.
func (c *Client) GetExchange(ctx context.Context, id string) (Exchange, error) {
	return getRecord[Exchange](c, ctx, "/api/exchanges/"+id, nil)
}

// GetTickers returns the tickers currently tracked on an exchange.
func (c *Client) GetTickers(ctx context.Context, exchange string) ([]Ticker, error) {
	return getRecords[Ticker](c, ctx, "/api/exchanges/"+exchange+"/tickers", nil)
}

// GetMarketData returns a candle series for one symbol on one exchange.
func (c *Client) GetMarketData(ctx context.Context, exchange, symbol, period string, limit int) (MarketData, error) {
	query := limitQuery(limit)
	if period != "" {
		if query == nil {
			query = map[string]string{}
		}

		query["period"] = period
	}

	return getRecord[MarketData](c, ctx, "/api/market/"+exchange+"/"+symbol, query)
}

// --------------------------------------------------------------------------------
// Blockchains

// GetBlockchains returns the tracked chains.
func (c *Client) GetBlockchains(ctx context.Context) ([]Blockchain, error) {
	return getRecords[Blockchain](c, ctx, "/api/blockchains", nil)
}

// GetBlockchain returns one chain by id.
func (c *Client) GetBlockchain(ctx context.Context, id string) (Blockchain, error) {
	return getRecord[Blockchain](c, ctx, "/api/blockchains/"+id, nil)
}

// --------------------------------------------------------------------------------
// Portfolios

// GetPortfolios returns all portfolios.
func (c *Client) GetPortfolios(ctx context.Context) ([]Portfolio, error) {
	return getRecords[Portfolio](c, ctx, "/api/portfolios", nil)
}

// GetPortfolio returns one portfolio with its assets.
func (c *Client) GetPortfolio(ctx context.Context, id string) (Portfolio, error) {
	return getRecord[Portfolio](c, ctx, "/api/portfolios/"+id, nil)
}

// --------------------------------------------------------------------------------
// Real-Time Subscriptions

// TickerChannel names the multiplexer channel for one symbol's ticker
// stream.
func TickerChannel(exchange, symbol string) string {
	return fmt.Sprintf("%s.ticker.%s", exchange, symbol)
}

// SubscribeTicker subscribes to real-time ticker updates for one symbol.
//
// Messages that do not decode into a valid Ticker are logged and dropped;
// the handler only ever sees validated records.
func (c *Client) SubscribeTicker(exchange, symbol string, handler func(Ticker)) error {
	if c.stream == nil {
		return websocket.ErrNoEndpoint
	}

	channel := TickerChannel(exchange, symbol)

	return c.stream.Subscribe(channel, func(msg map[string]any) {
		t, err := tickerFromMessage(msg)
		if err != nil {
			c.logger.Warn("dropping invalid ticker on %q: %v", channel, err)

			return
		}

		handler(t)
	})
}

// UnsubscribeTicker cancels a ticker subscription.
func (c *Client) UnsubscribeTicker(exchange, symbol string) error {
	if c.stream == nil {
		return websocket.ErrNoEndpoint
	}

	return c.stream.Unsubscribe(TickerChannel(exchange, symbol))
}

// --------------------------------------------------------------------------------
// Private Helpers

// getRecord fetches one endpoint and decodes a single validated record.
func getRecord[T any, PT interface {
	*T
	validator
}](c *Client, ctx context.Context, endpoint string, query map[string]string) (T, error) {
	var zero T

	resp, err := c.request(ctx, endpoint, query)
	if err != nil {
		return zero, err
	}

	return decodeRecord[T, PT](resp.Bytes())
}

// getRecords fetches one endpoint and decodes a validated record list.
func getRecords[T any, PT interface {
	*T
	validator
}](c *Client, ctx context.Context, endpoint string, query map[string]string) ([]T, error) {
	resp, err := c.request(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}

	return decodeRecords[T, PT](resp.Bytes())
}

// request performs one GET against the REST layer.
func (c *Client) request(ctx context.Context, endpoint string, query map[string]string) (*rest.Response, error) {
	opts := []rest.RequestOption{rest.WithContext(ctx)}
	if query != nil {
		opts = append(opts, rest.WithQueries(query))
	}

	return c.rest.R(opts...).Get(endpoint)
}

// limitQuery builds the optional limit parameter.
func limitQuery(limit int) map[string]string {
	if limit <= 0 {
		return nil
	}

	return map[string]string{"limit": strconv.Itoa(limit)}
}

// tickerFromMessage extracts a Ticker from an inbound stream message. The
// payload lives under "data" when present, otherwise the message itself is
// the payload.
func tickerFromMessage(msg map[string]any) (Ticker, error) {
	payload := msg
	if data, ok := msg["data"].(map[string]any); ok {
		payload = data
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Ticker{}, err
	}

	return decodeRecord[Ticker](raw)
}
