package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zeromicro/go-zero/core/logx"
)

const defaultBreakerKey = "default"

// breakers keeps one circuit breaker per DEX and endpoint. A dead DEX fails
// fast without tripping the others, and a symbol that keeps failing on the
// per-symbol endpoints leaves discovery of its DEX alone.
type breakers struct {
	mu      sync.RWMutex
	timeout time.Duration
	trip    uint32
	byKey   map[string]*gobreaker.CircuitBreaker
}

func newBreakers(timeout time.Duration, consecutiveFailures uint32) *breakers {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	return &breakers{
		timeout: timeout,
		trip:    consecutiveFailures,
		byKey:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *breakers) get(key string) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.byKey[key]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byKey[key]; ok {
		return cb
	}
	trip := b.trip
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "proxy:" + key,
		Timeout: b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation and client errors say nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled) || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Infof("proxy: breaker state name=%s from=%s to=%s", name, from, to)
		},
	})
	b.byKey[key] = cb
	return cb
}

func (b *breakers) state(key string) gobreaker.State {
	return b.get(key).State()
}

func breakerKey(dex, endpoint string) string {
	if dex == "" {
		dex = defaultBreakerKey
	}
	return dex + "|" + endpoint
}

// statusError carries the HTTP status of a non-2xx proxy response.
type statusError struct {
	endpoint string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("proxy: %s http status %d: %s", e.endpoint, e.code, e.body)
}

// isClientError reports a 4xx other than 429. Those point at the request, e.g.
// an unknown symbol, not at an unhealthy upstream.
func isClientError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
}
