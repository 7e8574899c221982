package ratelimit

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Rule struct {
	// probes allowed while half-open
	MaxRequests uint32 `mapstructure:"max_requests"`
	// closed-state counting window
	Interval time.Duration `mapstructure:"interval"`
	// >0 switches to a rolling window of buckets
	BucketPeriod time.Duration `mapstructure:"bucket_period"`
	// how long the breaker stays open
	Timeout time.Duration `mapstructure:"timeout"`

	// either condition trips the breaker
	TripConsecutiveFailures uint32  `mapstructure:"trip_consecutive_failures"`
	TripFailureRate         float64 `mapstructure:"trip_failure_rate"`
	TripMinRequests         uint32  `mapstructure:"trip_min_requests"`
}

// Manager lazily builds one breaker per name (a remote method, a peer).
type Manager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[any]

	defaultRule  Rule
	rules        map[string]Rule
	isSuccessful func(error) bool
	onState      func(name string, from, to gobreaker.State)
}

// NewManager builds a Manager. isSuccessful decides which errors do not
// count against the breaker; nil treats every error as a failure.
func NewManager(defaultRule Rule, perName map[string]Rule, isSuccessful func(error) bool) *Manager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 5
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 3 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = 10 * time.Second
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 10
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}
	return &Manager{
		m:            make(map[string]*gobreaker.CircuitBreaker[any], 16),
		defaultRule:  defaultRule,
		rules:        perName,
		isSuccessful: isSuccessful,
	}
}

// OnStateChange registers a hook for breaker transitions. Call before Get.
func (m *Manager) OnStateChange(fn func(name string, from, to gobreaker.State)) {
	m.onState = fn
}

func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb := m.m[name]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[name]; cb != nil {
		return cb
	}

	rule, ok := m.rules[name]
	if !ok {
		rule = m.defaultRule
	}
	st := gobreaker.Settings{
		Name:         name,
		MaxRequests:  rule.MaxRequests,
		Interval:     rule.Interval,
		BucketPeriod: rule.BucketPeriod,
		Timeout:      rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				return float64(c.TotalFailures)/float64(c.Requests) >= rule.TripFailureRate
			}
			return false
		},
		IsSuccessful: m.isSuccessful,
	}
	if m.onState != nil {
		hook := m.onState
		st.OnStateChange = func(name string, from, to gobreaker.State) { hook(name, from, to) }
	}
	cb = gobreaker.NewCircuitBreaker[any](st)
	m.m[name] = cb
	return cb
}

// IsOpen reports whether err is the breaker refusing the call.
func IsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
