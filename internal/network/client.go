package network

import (
	"log/slog"
	"net"
	"net/http"
	"time"
	"zentry/internal/config"
)

// NewTransport builds the pooled transport both clients sit on.
func NewTransport(api config.APIConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   api.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: api.ReadTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// NewPlainClient is used for login, refresh and logout. It never carries
// the authenticating transport.
func NewPlainClient(api config.APIConfig, log *slog.Logger) *http.Client {
	return &http.Client{
		Transport: NewLoggingTransport(NewTransport(api), log),
	}
}

// NewAuthClient returns the client for every authenticated API call together
// with its transport, which the caller resets on logout.
func NewAuthClient(api config.APIConfig, store TokenStore, refresher Refresher, log *slog.Logger) (*http.Client, *AuthTransport) {
	transport := NewAuthTransport(NewLoggingTransport(NewTransport(api), log), store, refresher, log)
	return &http.Client{Transport: transport}, transport
}
