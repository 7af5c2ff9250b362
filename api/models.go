package api

import (
	"time"

	json "github.com/bytedance/sonic"

	"github.com/cryptolytica/goclient/rest"
)

// Decoding policy: a missing non-identity field falls back to the
// documented default; a missing identity field (record id, or the
// exchange/symbol pair for market data) is a hard decode error.

// --------------------------------------------------------------------------------
// Types

// SystemStatus describes the platform's collectors, processors, and
// database health.
type SystemStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Collectors map[string]string `json:"collectors"`
	Processors map[string]string `json:"processors"`
	Database   map[string]any    `json:"database"`
}

// Exchange is one connected exchange.
type Exchange struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	LastUpdate string `json:"last_update"`
}

// LastUpdateTime parses the last_update timestamp.
func (e Exchange) LastUpdateTime() (time.Time, error) {
	return time.Parse(time.RFC3339, e.LastUpdate)
}

// Blockchain is one tracked chain.
type Blockchain struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	LastBlock  int64  `json:"last_block"`
	LastUpdate string `json:"last_update"`
}

// LastUpdateTime parses the last_update timestamp.
func (b Blockchain) LastUpdateTime() (time.Time, error) {
	return time.Parse(time.RFC3339, b.LastUpdate)
}

// Candle is one OHLCV entry.
type Candle struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// MarketData is a candle series for one symbol on one exchange.
type MarketData struct {
	Exchange string   `json:"exchange"`
	Symbol   string   `json:"symbol"`
	Period   string   `json:"period"`
	Data     []Candle `json:"data"`
}

// Ticker is a 24h price snapshot for one symbol.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume_24h"`
	Change24h float64 `json:"change_24h"`
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
	UpdatedAt string  `json:"updated_at"`
}

// PortfolioAsset is one position inside a portfolio.
type PortfolioAsset struct {
	Symbol     string  `json:"symbol"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Allocation float64 `json:"allocation"`
}

// Portfolio is a named collection of assets.
type Portfolio struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Assets     []PortfolioAsset `json:"assets"`
	TotalValue float64          `json:"total_value"`
	LastUpdate string           `json:"last_update"`
}

// Event is one platform event.
type Event struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
}

// --------------------------------------------------------------------------------
// Validation

// statusUnknown is the fallback for absent status fields.
const statusUnknown = "unknown"

func (s *SystemStatus) validate(raw []byte) error {
	if s.Status == "" {
		s.Status = statusUnknown
	}

	if s.Collectors == nil {
		s.Collectors = map[string]string{}
	}

	if s.Processors == nil {
		s.Processors = map[string]string{}
	}

	if s.Database == nil {
		s.Database = map[string]any{}
	}

	return nil
}

func (e *Exchange) validate(raw []byte) error {
	if e.ID == "" {
		return rest.NewDecodeError(raw, "exchange record missing id")
	}

	if e.Name == "" {
		e.Name = e.ID
	}

	if e.Status == "" {
		e.Status = statusUnknown
	}

	return nil
}

func (b *Blockchain) validate(raw []byte) error {
	if b.ID == "" {
		return rest.NewDecodeError(raw, "blockchain record missing id")
	}

	if b.Name == "" {
		b.Name = b.ID
	}

	if b.Status == "" {
		b.Status = statusUnknown
	}

	return nil
}

func (m *MarketData) validate(raw []byte) error {
	if m.Exchange == "" || m.Symbol == "" {
		return rest.NewDecodeError(raw, "market data missing exchange or symbol")
	}

	if m.Period == "" {
		m.Period = "1d"
	}

	if m.Data == nil {
		m.Data = []Candle{}
	}

	return nil
}

func (t *Ticker) validate(raw []byte) error {
	if t.Symbol == "" {
		return rest.NewDecodeError(raw, "ticker record missing symbol")
	}

	return nil
}

func (p *Portfolio) validate(raw []byte) error {
	if p.ID == "" {
		return rest.NewDecodeError(raw, "portfolio record missing id")
	}

	if p.Name == "" {
		p.Name = p.ID
	}

	if p.Assets == nil {
		p.Assets = []PortfolioAsset{}
	}

	return nil
}

func (e *Event) validate(raw []byte) error {
	if e.ID == "" {
		return rest.NewDecodeError(raw, "event record missing id")
	}

	if e.Severity == "" {
		e.Severity = "info"
	}

	return nil
}

// --------------------------------------------------------------------------------
// Helpers

// validator is implemented by every domain record.
type validator interface {
	validate(raw []byte) error
}

// decodeRecord unmarshals one record and applies its validation rules.
func decodeRecord[T any, PT interface {
	*T
	validator
}](raw []byte) (T, error) {
	var v T

	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, &rest.DecodeError{RawBody: raw, Cause: err}
	}

	if err := PT(&v).validate(raw); err != nil {
		var zero T
		return zero, err
	}

	return v, nil
}

// decodeRecords unmarshals a JSON array of records, validating each.
func decodeRecords[T any, PT interface {
	*T
	validator
}](raw []byte) ([]T, error) {
	var vs []T

	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, &rest.DecodeError{RawBody: raw, Cause: err}
	}

	for i := range vs {
		if err := PT(&vs[i]).validate(raw); err != nil {
			return nil, err
		}
	}

	return vs, nil
}
