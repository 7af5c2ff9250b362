package websocket

import (
	"errors"
	"fmt"
	"time"

	"github.com/cryptolytica/goclient/logger"
)

// --------------------------------------------------------------------------------
// Option Functions

// WithAPIKey sets the API key sent in the auth control message after a
// successful handshake.
func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = key

		return nil
	}
}

// WithTimeout bounds the handshake and each write operation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive: %v", timeout)
		}

		c.timeout = timeout

		return nil
	}
}

// WithHeader adds a key-value pair to the handshake headers.
func WithHeader(key, value string) Option {
	return func(c *Client) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}

		c.header.Set(key, value)

		return nil
	}
}

// WithKeepAlive enables periodic pings at the given interval.
func WithKeepAlive(interval time.Duration) Option {
	return func(c *Client) error {
		if interval <= 0 {
			return fmt.Errorf("ping interval must be positive: %v", interval)
		}

		c.keepAlive = true
		c.pingInterval = interval

		return nil
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Interface) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}

		c.logger = l

		return nil
	}
}

// OnMessage registers the global handler invoked for every inbound message
// regardless of channel.
func OnMessage(h Handler) Option {
	return func(c *Client) error {
		c.onMessage = h

		return nil
	}
}
