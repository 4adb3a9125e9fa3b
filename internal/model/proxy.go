// Package model defines shared types for the edge proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Path     string
	Query    url.Values
	Header   http.Header
	Body     io.ReadCloser
	Host     string // original Host header, preserved upstream
	ClientIP string // direct client address, without port
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	// CacheStatus reports how the cache handled the request:
	// "HIT", "MISS", or "BYPASS" for paths that are never cached.
	CacheStatus string
}

// Cache status values carried on ProxyResponse and the X-Cache-Status header.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)
