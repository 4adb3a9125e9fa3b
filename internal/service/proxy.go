// Package service implements the edge routing and caching rules.
//
// Every request resolves to exactly one action: the health route is answered
// by the handler without reaching this package, static-asset paths go through
// the cache, and everything else is forwarded to the WAS pool unconditionally.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"

	"github.com/reynecat/petclinic-edge/internal/cache"
	"github.com/reynecat/petclinic-edge/internal/config"
	"github.com/reynecat/petclinic-edge/internal/metrics"
	"github.com/reynecat/petclinic-edge/internal/model"
	"github.com/reynecat/petclinic-edge/internal/upstream"
)

// hopByHopHeaders must not cross the proxy in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService decides between cache and forward, and annotates forwarded
// requests with the client-identity headers the WAS expects.
type ProxyService struct {
	client     *upstream.Client
	pool       *upstream.Pool
	store      *cache.LRU // nil when caching is disabled
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics // nil to disable cache counters
	extensions map[string]bool
}

// NewProxyService creates a ProxyService. store may be nil to disable the
// static-asset cache; m may be nil to disable cache metrics.
func NewProxyService(c *upstream.Client, pool *upstream.Pool, store *cache.LRU, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	exts := make(map[string]bool, len(cfg.Cache.Extensions))
	for _, e := range cfg.Cache.Extensions {
		exts[e] = true
	}
	return &ProxyService{
		client:     c,
		pool:       pool,
		store:      store,
		cfg:        cfg,
		logger:     logger.With("component", "proxy_service"),
		metrics:    m,
		extensions: exts,
	}
}

// Cacheable reports whether p names a static asset per the configured
// extension set.
func (s *ProxyService) Cacheable(p string) bool {
	return s.extensions[strings.ToLower(path.Ext(p))]
}

// CacheStats returns current entry and eviction counts for the status endpoint.
func (s *ProxyService) CacheStats() (entries int, evictions int64) {
	if s.store == nil {
		return 0, 0
	}
	return s.store.Len(), s.store.Evictions()
}

// Forward routes a ProxyRequest: static-asset GETs are served from cache when
// fresh and populate it on miss; everything else goes straight upstream.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if s.store != nil && pr.Method == http.MethodGet && s.Cacheable(pr.Path) {
		return s.forwardCached(pr)
	}

	resp, err := s.forward(pr)
	if err != nil {
		return nil, err
	}
	resp.CacheStatus = model.CacheBypass
	return resp, nil
}

func (s *ProxyService) forwardCached(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	key := cacheKey(pr.Path, pr.Query)

	if e, ok := s.store.Get(key); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		s.logger.Debug("cache hit", "key", key)

		header := e.Header.Clone()
		header.Set("Expires", e.StoredAt.Add(s.store.TTL()).UTC().Format(http.TimeFormat))
		return &model.ProxyResponse{
			StatusCode:  e.StatusCode,
			Header:      header,
			Body:        io.NopCloser(bytes.NewReader(e.Body)),
			CacheStatus: model.CacheHit,
		}, nil
	}

	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	resp, err := s.forward(pr)
	if err != nil {
		return nil, err
	}
	resp.CacheStatus = model.CacheMiss

	// Only successful responses enter the cache.
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	// Buffer up to the cacheable limit. A body that overruns it is streamed
	// through without being stored.
	limit := s.cfg.Cache.MaxBodyBytes
	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	if len(buf) > limit {
		resp.Body = splicedBody(buf, resp.Body)
		return resp, nil
	}
	_ = resp.Body.Close()

	e := cache.Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       buf,
	}
	s.store.Set(key, e)

	if got, ok := s.store.Get(key); ok {
		resp.Header.Set("Expires", got.StoredAt.Add(s.store.TTL()).UTC().Format(http.TimeFormat))
	}
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return resp, nil
}

func (s *ProxyService) forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	addr := s.pool.Next()
	upstreamURL := buildUpstreamURL(addr, pr.Path, pr.Query)
	header := s.annotateHeaders(pr)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"endpoint", addr,
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, upstreamURL, pr.Host, header, pr.Body)
	if err != nil {
		// Cooldown only on transport-level failures; a canceled client
		// request says nothing about endpoint health.
		if !errors.Is(err, context.Canceled) {
			s.pool.MarkDown(addr)
		}
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	s.pool.MarkUp(addr)
	stripHopByHop(resp.Header)
	return resp, nil
}

// annotateHeaders clones the client headers, strips hop-by-hop entries, and
// injects X-Real-IP and the extended X-Forwarded-For chain.
func (s *ProxyService) annotateHeaders(pr *model.ProxyRequest) http.Header {
	header := pr.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	stripHopByHop(header)

	if pr.ClientIP != "" {
		header.Set("X-Real-IP", pr.ClientIP)
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			header.Set("X-Forwarded-For", prior+", "+pr.ClientIP)
		} else {
			header.Set("X-Forwarded-For", pr.ClientIP)
		}
	}

	return header
}

func buildUpstreamURL(addr, p string, query url.Values) string {
	u := url.URL{
		Scheme:   "http",
		Host:     addr,
		Path:     p,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func cacheKey(p string, query url.Values) string {
	if q := query.Encode(); q != "" {
		return p + "?" + q
	}
	return p
}

// stripHopByHop removes hop-by-hop headers, including any named by the
// Connection header itself.
func stripHopByHop(header http.Header) {
	for _, v := range header.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		header.Del(h)
	}
}

// splicedBody rejoins an already-buffered prefix with the unread remainder of
// the upstream body.
func splicedBody(prefix []byte, rest io.ReadCloser) io.ReadCloser {
	return &spliced{
		Reader: io.MultiReader(bytes.NewReader(prefix), rest),
		closer: rest,
	}
}

type spliced struct {
	io.Reader
	closer io.Closer
}

func (s *spliced) Close() error {
	return s.closer.Close()
}
