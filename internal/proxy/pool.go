package proxy

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a proxy is skipped after a failed run.
const DefaultCooldown = 5 * time.Minute

// Pool hands out browser proxies round-robin, skipping ones whose last run
// was blocked or timed out.
type Pool struct {
	proxies  []string
	next     int
	cooldown time.Duration
	failed   map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewPool creates a pool. A single non-empty proxy, or none, is valid.
func NewPool(proxies []string, cooldown time.Duration) *Pool {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	var list []string
	for _, p := range proxies {
		if p != "" {
			list = append(list, p)
		}
	}
	return &Pool{
		proxies:  list,
		cooldown: cooldown,
		failed:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Next returns the proxy for the next run, or "" when the pool is empty.
// When every proxy is cooling down the one that failed longest ago is used.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	oldest := ""
	var oldestAt time.Time
	for i := 0; i < len(p.proxies); i++ {
		candidate := p.proxies[p.next]
		p.next = (p.next + 1) % len(p.proxies)

		failedAt, ok := p.failed[candidate]
		if !ok {
			return candidate
		}
		if p.now().Sub(failedAt) >= p.cooldown {
			delete(p.failed, candidate)
			return candidate
		}
		if oldest == "" || failedAt.Before(oldestAt) {
			oldest, oldestAt = candidate, failedAt
		}
	}
	return oldest
}

// MarkFailed puts proxy on cooldown
func (p *Pool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *Pool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}

// Len is the number of configured proxies.
func (p *Pool) Len() int {
	return len(p.proxies)
}
