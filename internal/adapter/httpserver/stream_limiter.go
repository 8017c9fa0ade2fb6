package httpserver

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

type limitReason string

const (
	limitGlobal limitReason = "global_limit"
	limitPerIP  limitReason = "per_ip_limit"
)

// streamLimiter caps open /connect streams, in total and per client IP.
// A zero maximum disables that cap.
type streamLimiter struct {
	mu       sync.Mutex
	total    int
	perIP    map[string]int
	maxTotal int
	maxPerIP int
}

func newStreamLimiter(maxTotal, maxPerIP int) *streamLimiter {
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

func (l *streamLimiter) acquire(ip string) (bool, limitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false, limitGlobal
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return false, limitPerIP
	}
	l.total++
	l.perIP[ip]++
	return true, ""
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] == 0 {
		return
	}
	l.total--
	l.perIP[ip]--
	if l.perIP[ip] == 0 {
		delete(l.perIP, ip)
	}
}

func (l *streamLimiter) open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// middleware rejects a stream with 429 before any event is written.
func (l *streamLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			ok, reason := l.acquire(ip)
			if !ok {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":  "too many open pairing streams",
					"reason": string(reason),
				})
			}
			defer l.release(ip)
			return next(c)
		}
	}
}
