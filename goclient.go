// Package goclient is the Go client library for the CryptoLytica
// crypto-data platform.
//
// The rest package performs authenticated JSON requests against the REST
// gateway; the websocket package multiplexes real-time channel
// subscriptions over a single connection; the api package ties both
// together behind typed domain accessors.
package goclient

import (
	"github.com/cryptolytica/goclient/api"
	"github.com/cryptolytica/goclient/config"
)

// Version is the library version.
const Version = "0.3.0"

// New builds a typed platform client from a configuration.
//
// It is shorthand for api.New.
func New(cfg config.Config, opts ...api.Option) (*api.Client, error) {
	return api.New(cfg, opts...)
}
