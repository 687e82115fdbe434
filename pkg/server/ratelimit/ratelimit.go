// Package ratelimit implements a per-client sliding window limiter for the
// chat endpoint. State is in-memory and single-process.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config bounds requests per client and the in-memory map itself.
type Config struct {
	// Requests allowed per Window for one client.
	Requests int
	Window   time.Duration

	// Operational bounds for the client map.
	MaxEntries int
	EntryTTL   time.Duration
}

// Limiter tracks request timestamps per client key.
type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientWindow
}

type clientWindow struct {
	stamps   []time.Time
	lastSeen time.Time
}

// New creates a limiter. Zero Requests or Window disables limiting.
func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*clientWindow),
	}
}

// Decision is the outcome of an Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter int
}

// Allow records one request attempt for the client and reports whether it
// fits in the window.
func (l *Limiter) Allow(client string, now time.Time) Decision {
	if l.cfg.Requests <= 0 || l.cfg.Window <= 0 {
		return Decision{Allowed: true}
	}
	if client == "" {
		client = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cw := l.getOrCreateLocked(client, now)
	cw.lastSeen = now

	cutoff := now.Add(-l.cfg.Window)
	kept := cw.stamps[:0]
	for _, ts := range cw.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cw.stamps = kept

	if len(cw.stamps) >= l.cfg.Requests {
		oldest := cw.stamps[0]
		retry := int(oldest.Sub(cutoff).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}

	cw.stamps = append(cw.stamps, now)
	return Decision{Allowed: true, Remaining: l.cfg.Requests - len(cw.stamps)}
}

func (l *Limiter) getOrCreateLocked(client string, now time.Time) *clientWindow {
	if cw, ok := l.m[client]; ok {
		return cw
	}
	// Evict only when a genuinely new entry needs room, so a known
	// client's own window is never reset by the overflow path.
	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// Still full: drop one arbitrary entry, bounded memory wins.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}
	cw := &clientWindow{lastSeen: now}
	l.m[client] = cw
	return cw
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, k)
		}
	}
}

// ClientIP extracts the caller identity for limiting: the first
// X-Forwarded-For hop when present, otherwise the connection address.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
