package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter 按会话用户限制写操作频率
type RateLimiter interface {
	Allow(userID string) bool
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type sessionLimiters struct {
	sync.Mutex
	data    map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewRateLimiter perSecond<=0 时不限流
func NewRateLimiter(ctx context.Context, perSecond float64, burst int) RateLimiter {
	if burst < 1 {
		burst = 1
	}
	m := &sessionLimiters{
		data:    make(map[string]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	if perSecond <= 0 {
		m.limit = rate.Inf
	}
	m.start(ctx)
	return m
}

func (m *sessionLimiters) Allow(userID string) bool {
	m.Lock()
	defer m.Unlock()
	e, ok := m.data[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.data[userID] = e
	}
	now := m.now()
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (m *sessionLimiters) start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanIdle()
			}
		}
	}()
}

func (m *sessionLimiters) cleanIdle() {
	m.Lock()
	defer m.Unlock()
	now := m.now()
	toDel := []string{}
	for k, e := range m.data {
		if now.Sub(e.lastSeen) > m.idleTTL {
			toDel = append(toDel, k)
		}
		if len(toDel) > 100 { //避免长时间占用锁，小量多次处理
			break
		}
	}
	for _, k := range toDel {
		delete(m.data, k)
	}
}
