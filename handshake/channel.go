package handshake

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var ErrHandlerRegistered = errors.New("message handler already registered")

// Handler receives message bodies that passed the origin gate.
type Handler func(body json.RawMessage)

// DebugHook is an optional observability callback. It never changes behaviour.
type DebugHook func(event string, attrs map[string]any)

// Channel is the single inbound listener for frame messages. Anything not sent
// by the trusted origin is dropped without a trace.
type Channel struct {
	mu      sync.Mutex
	trusted string
	handler Handler
	debug   DebugHook
}

func NewChannel(trustedOrigin string, debug DebugHook) (*Channel, error) {
	origin, err := NormalizeOrigin(trustedOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted origin: %w", err)
	}
	return &Channel{trusted: origin, debug: debug}, nil
}

func (ch *Channel) TrustedOrigin() string {
	return ch.trusted
}

// Register installs the handler. It can be called once per channel.
func (ch *Channel) Register(h Handler) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.handler != nil {
		return ErrHandlerRegistered
	}
	ch.handler = h
	return nil
}

// Deliver forwards body to the handler when origin is trusted and reports
// whether it did.
func (ch *Channel) Deliver(origin string, body json.RawMessage) bool {
	normalized, err := NormalizeOrigin(origin)
	if err != nil || normalized != ch.trusted {
		if ch.debug != nil {
			ch.debug("message_dropped", map[string]any{"origin": origin})
		}
		return false
	}

	ch.mu.Lock()
	h := ch.handler
	ch.mu.Unlock()
	if h == nil {
		return false
	}
	h(body)
	return true
}

// NormalizeOrigin reduces an origin to scheme://host[:port], lower-cased and
// without default ports. Hosts are compared exactly, so www.example.com and
// example.com are different origins.
func NormalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return "", errors.New("empty origin")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("origin %q has no scheme or host", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return "", fmt.Errorf("origin %q has a path", origin)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		return fmt.Sprintf("%s://%s:%s", scheme, host, port), nil
	}
	return fmt.Sprintf("%s://%s", scheme, host), nil
}
