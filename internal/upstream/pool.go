// Package upstream provides the application-server pool and its HTTP client.
package upstream

import (
	"sync"
	"time"
)

// Pool round-robins across the configured WAS endpoints. An endpoint reported
// down is skipped until its cooldown elapses; when every endpoint is cooling
// down the rotation continues anyway so a recovered server is found without a
// separate probe loop.
type Pool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	next      uint64
	cooldown  time.Duration

	now func() time.Time // injectable clock
}

type endpoint struct {
	addr      string // host:port
	skipUntil time.Time
}

// NewPool creates a Pool over host:port addresses with the given cooldown.
func NewPool(addrs []string, cooldown time.Duration) *Pool {
	eps := make([]*endpoint, len(addrs))
	for i, a := range addrs {
		eps[i] = &endpoint{addr: a}
	}
	return &Pool{
		endpoints: eps,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Next returns the next endpoint address in rotation, preferring endpoints
// that are not cooling down.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := uint64(len(p.endpoints))
	if n == 0 {
		return ""
	}

	start := p.next
	p.next++

	now := p.now()
	for i := uint64(0); i < n; i++ {
		ep := p.endpoints[(start+i)%n]
		if ep.skipUntil.IsZero() || !now.Before(ep.skipUntil) {
			return ep.addr
		}
	}

	// All endpoints cooling down: hand out the plain rotation pick.
	return p.endpoints[start%n].addr
}

// MarkDown starts the cooldown for addr after a connection-level failure.
func (p *Pool) MarkDown(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.addr == addr {
			ep.skipUntil = p.now().Add(p.cooldown)
			return
		}
	}
}

// MarkUp clears the cooldown for addr after a successful response.
func (p *Pool) MarkUp(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.addr == addr {
			ep.skipUntil = time.Time{}
			return
		}
	}
}

// Size returns the number of configured endpoints.
func (p *Pool) Size() int {
	return len(p.endpoints)
}
