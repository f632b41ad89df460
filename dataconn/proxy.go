package dataconn

import (
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// ProxyKind selects which of spec.md §6's "proxy-specific handshakes" a
// data (or control) connection dial should go through.
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxySOCKS4
	ProxySOCKS4A
	ProxySOCKS5
	ProxyHTTPConnect
)

// ProxyConfig describes the proxy a session is configured to dial through.
type ProxyConfig struct {
	Kind     ProxyKind
	Address  string
	Username string
	Password string
}

// dialThroughProxy opens network/target through cfg's proxy, or directly
// if cfg.Kind is ProxyNone.
func dialThroughProxy(network, target string, cfg ProxyConfig) (net.Conn, error) {
	switch cfg.Kind {
	case ProxyNone:
		return net.Dial(network, target)
	case ProxySOCKS5:
		var auth *proxy.Auth
		if cfg.Username != "" {
			auth = &proxy.Auth{User: cfg.Username, Password: cfg.Password}
		}

		dialer, err := proxy.SOCKS5(network, cfg.Address, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("dataconn: SOCKS5 proxy setup: %w", err)
		}

		return dialer.Dial(network, target)
	case ProxySOCKS4, ProxySOCKS4A:
		return dialSOCKS4(network, cfg, target)
	case ProxyHTTPConnect:
		return dialHTTPConnect(network, cfg, target)
	default:
		return nil, fmt.Errorf("dataconn: unknown proxy kind %d", cfg.Kind)
	}
}
