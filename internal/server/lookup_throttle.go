package server

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	codeMissLimit  = 20
	codeMissWindow = time.Minute
	codeMissBlock  = 5 * time.Minute
)

// lookupThrottle blocks a client after repeated lookups of codes that hold
// no files.
type lookupThrottle struct {
	mu            sync.Mutex
	entries       map[string]lookupEntry
	maxMisses     int
	window        time.Duration
	blockedFor    time.Duration
	staleAfter    time.Duration
	opCount       int
	cleanupEveryN int
}

type lookupEntry struct {
	misses       int
	firstMissAt  time.Time
	blockedUntil time.Time
	lastSeenAt   time.Time
}

func newLookupThrottle(maxMisses int, window, blockedFor time.Duration) *lookupThrottle {
	if maxMisses <= 0 || window <= 0 || blockedFor <= 0 {
		return nil
	}
	staleAfter := 2 * max(window, blockedFor)
	return &lookupThrottle{
		entries:       make(map[string]lookupEntry),
		maxMisses:     maxMisses,
		window:        window,
		blockedFor:    blockedFor,
		staleAfter:    max(staleAfter, 10*time.Minute),
		cleanupEveryN: 64,
	}
}

// Allow reports whether client may look up another code.
func (l *lookupThrottle) Allow(client string, now time.Time) bool {
	if l == nil || client == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.maybeCleanupLocked(now)

	entry := l.entries[client]
	entry.lastSeenAt = now
	if now.Before(entry.blockedUntil) {
		l.entries[client] = entry
		return false
	}
	if !entry.firstMissAt.IsZero() && now.Sub(entry.firstMissAt) > l.window {
		entry.misses = 0
		entry.firstMissAt = time.Time{}
	}
	entry.blockedUntil = time.Time{}
	l.entries[client] = entry
	return true
}

// Miss records a lookup of a code that had no files.
func (l *lookupThrottle) Miss(client string, now time.Time) {
	if l == nil || client == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.maybeCleanupLocked(now)

	entry := l.entries[client]
	if entry.firstMissAt.IsZero() || now.Sub(entry.firstMissAt) > l.window {
		entry.misses = 0
		entry.firstMissAt = now
	}
	entry.misses++
	if entry.misses >= l.maxMisses {
		entry.blockedUntil = now.Add(l.blockedFor)
		entry.misses = 0
		entry.firstMissAt = time.Time{}
	}
	entry.lastSeenAt = now
	l.entries[client] = entry
}

func (l *lookupThrottle) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount%l.cleanupEveryN != 0 {
		return
	}
	for client, entry := range l.entries {
		if now.Sub(entry.lastSeenAt) > l.staleAfter {
			delete(l.entries, client)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var errLookupThrottled = errors.New("too many lookups of unknown codes; retry later")

// allowCodeLookup writes 429 and returns false while the caller is blocked.
func (s *Server) allowCodeLookup(w http.ResponseWriter, r *http.Request) bool {
	if s.codeLookups.Allow(clientKey(r), time.Now()) {
		return true
	}
	s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
		status:  http.StatusTooManyRequests,
		code:    "resource_exhausted",
		errCode: ErrCodeResourceExhausted,
		err:     errLookupThrottled,
	})
	return false
}

func (s *Server) recordCodeMiss(r *http.Request) {
	s.codeLookups.Miss(clientKey(r), time.Now())
}
