package proxypool

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"
)

// TransportOptions tunes the transports built by NewTransport.
type TransportOptions struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewTransport returns an http.Transport that routes every request through rec.
func NewTransport(rec Record, opts TransportOptions) (*http.Transport, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		DisableKeepAlives:     true,
	}
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // proxies are probed, not trusted
	}

	switch rec.Protocol {
	case ProtocolHTTP, ProtocolHTTPS, "":
		tr.Proxy = http.ProxyURL(rec.URL())
	case ProtocolSOCKS5:
		var auth *proxy.Auth
		if rec.Username != "" {
			auth = &proxy.Auth{User: rec.Username, Password: rec.Password}
		}
		d, err := proxy.SOCKS5("tcp", rec.Address(), auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %s: %w", rec.Address(), err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	case ProtocolSOCKS4:
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", rec.Address(), timeout))
		tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return dial(network, addr)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, rec.Protocol)
	}
	return tr, nil
}
