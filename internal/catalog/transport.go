package catalog

import (
	"net"
	"net/http"
	"time"
)

// baseTransportConfig returns the HTTP transport shared by listing and download calls.
// The archive is served from a single host, so per-host idle connections are kept
// close to the default fetch concurrency.
func baseTransportConfig() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: 2 * time.Minute,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   50,
	}
}

// newHTTPClient has no overall timeout; callers bound each request with a context.
func newHTTPClient() *http.Client {
	return &http.Client{Transport: baseTransportConfig()}
}
