package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"sjsage522/carpriceworker/pkg/errors"

	"github.com/rs/zerolog/log"
)

// ProxyManager interface for managing proxies
type ProxyManager interface {
	UpdateProxies(ctx context.Context) error
	GetFastestProxy() (*ProxyInfo, error)
	GetTopProxies(n int) []ProxyInfo
}

// ProxyInfo holds proxy information with latency
type ProxyInfo struct {
	URL      string        `json:"url"`
	Host     string        `json:"host"`
	Port     string        `json:"port"`
	Type     string        `json:"type"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

// Pool ranks a configured list of egress proxies by dial latency and
// hands them out round robin among the fastest.
type Pool struct {
	candidates     []ProxyInfo
	proxies        []ProxyInfo
	mutex          sync.RWMutex
	lastUpdate     time.Time
	updateInterval time.Duration
	keep           int
	next           int
	dialTimeout    time.Duration
	dial           func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewPool parses entries such as socks5://host:port or host:port (taken
// as http). Invalid entries are logged and dropped.
func NewPool(entries []string) *Pool {
	p := &Pool{
		updateInterval: 30 * time.Minute,
		keep:           5,
		dialTimeout:    5 * time.Second,
	}
	dialer := &net.Dialer{}
	p.dial = dialer.DialContext

	for _, entry := range entries {
		info, err := parseProxy(entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("Skipping invalid proxy entry")
			continue
		}
		p.candidates = append(p.candidates, info)
	}
	return p
}

func parseProxy(entry string) (ProxyInfo, error) {
	entry = strings.TrimSpace(entry)
	if !strings.Contains(entry, "://") {
		entry = "http://" + entry
	}
	u, err := url.Parse(entry)
	if err != nil {
		return ProxyInfo{}, errors.NewConfiguration("invalid proxy url", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return ProxyInfo{}, errors.NewConfiguration(fmt.Sprintf("unsupported proxy scheme %q", u.Scheme), nil)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return ProxyInfo{}, errors.NewConfiguration("proxy needs host and port", nil)
	}
	return ProxyInfo{URL: u.String(), Host: u.Hostname(), Port: u.Port(), Type: u.Scheme}, nil
}

// Len returns the number of configured candidates
func (p *Pool) Len() int {
	return len(p.candidates)
}

// testProxyLatency measures a TCP connect to the proxy
func (p *Pool) testProxyLatency(ctx context.Context, proxy *ProxyInfo) {
	ctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", net.JoinHostPort(proxy.Host, proxy.Port))
	proxy.LastTest = time.Now()
	if err != nil {
		proxy.Working = false
		proxy.Latency = time.Hour
		return
	}
	conn.Close()

	proxy.Working = true
	proxy.Latency = time.Since(start)
	log.Debug().Str("proxy", proxy.Host+":"+proxy.Port).Dur("latency", proxy.Latency).Msg("Proxy reachable")
}

// UpdateProxies tests every candidate and keeps the fastest working ones
func (p *Pool) UpdateProxies(ctx context.Context) error {
	if len(p.candidates) == 0 {
		return nil
	}

	tested := make([]ProxyInfo, len(p.candidates))
	copy(tested, p.candidates)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 20)
	for i := range tested {
		wg.Add(1)
		go func(proxy *ProxyInfo) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			p.testProxyLatency(ctx, proxy)
		}(&tested[i])
	}
	wg.Wait()

	var working []ProxyInfo
	for _, proxy := range tested {
		if proxy.Working {
			working = append(working, proxy)
		}
	}
	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Latency < working[j].Latency
	})
	if len(working) > p.keep {
		working = working[:p.keep]
	}

	p.mutex.Lock()
	p.proxies = working
	p.lastUpdate = time.Now()
	p.next = 0
	p.mutex.Unlock()

	log.Info().Int("working", len(working)).Int("tested", len(tested)).Msg("Updated proxy pool")
	if len(working) == 0 {
		return errors.NewTransient("proxy", "no working proxies", nil)
	}
	return nil
}

func (p *Pool) stale() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return time.Since(p.lastUpdate) > p.updateInterval
}

// GetFastestProxy returns the fastest working proxy
func (p *Pool) GetFastestProxy() (*ProxyInfo, error) {
	if p.stale() {
		if err := p.UpdateProxies(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to update proxies")
		}
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if len(p.proxies) == 0 {
		return nil, errors.NewTransient("proxy", "no working proxies available", nil)
	}
	fastest := p.proxies[0]
	return &fastest, nil
}

// GetTopProxies returns the top N fastest proxies
func (p *Pool) GetTopProxies(n int) []ProxyInfo {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if n > len(p.proxies) {
		n = len(p.proxies)
	}
	result := make([]ProxyInfo, n)
	copy(result, p.proxies[:n])
	return result
}

// Next returns the next working proxy URL in rotation. ok is false when
// the pool is empty.
func (p *Pool) Next() (string, bool) {
	if len(p.candidates) == 0 {
		return "", false
	}
	if p.stale() {
		if err := p.UpdateProxies(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to update proxies")
		}
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(p.proxies) == 0 {
		return "", false
	}
	proxy := p.proxies[p.next%len(p.proxies)]
	p.next++
	return proxy.URL, true
}

// Stats returns current pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := map[string]interface{}{
		"candidates":    len(p.candidates),
		"total_proxies": len(p.proxies),
		"last_update":   p.lastUpdate,
	}
	if len(p.proxies) > 0 {
		stats["fastest_latency"] = p.proxies[0].Latency
	}
	return stats
}
