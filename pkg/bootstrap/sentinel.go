package bootstrap

import (
	"fmt"
	"strings"

	sentinels "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	"github.com/alibaba/sentinel-golang/core/flow"
)

type SentinelCfg struct {
	Enabled bool          `mapstructure:"enabled"`
	Flow    FlowSection   `mapstructure:"flow"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type FlowSection struct {
	Enabled bool       `mapstructure:"enabled"`
	Rules   []FlowRule `mapstructure:"rules"`
}

type FlowRule struct {
	Resource         string  `mapstructure:"resource"`
	Threshold        float64 `mapstructure:"threshold"`
	StatIntervalMs   uint32  `mapstructure:"stat_interval_ms"`
	Strategy         string  `mapstructure:"strategy"` // direct/warmup/memory_adaptive
	Control          string  `mapstructure:"control"`  // reject/throttling
	MaxQueueWaitMs   uint32  `mapstructure:"max_queue_wait_ms"`
	WarmUpSec        uint32  `mapstructure:"warm_up_sec"`
	WarmUpColdFactor uint32  `mapstructure:"warm_up_cold_factor"`
}

type BreakerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Rules   []BreakerRule `mapstructure:"rules"`
}

type BreakerRule struct {
	Resource         string  `mapstructure:"resource"`
	Strategy         string  `mapstructure:"strategy"` // error_ratio/error_count/slow_request_ratio
	Threshold        float64 `mapstructure:"threshold"`
	StatIntervalMs   uint32  `mapstructure:"stat_interval_ms"`
	MinRequestAmount uint64  `mapstructure:"min_request_amount"`
	RetryTimeoutMs   uint32  `mapstructure:"retry_timeout_ms"`
}

// InitSentinel starts sentinel and loads the configured rules. A nil or
// fully disabled config is a no-op.
func InitSentinel(sc *SentinelCfg) error {
	if sc == nil || !(sc.Enabled || sc.Flow.Enabled || sc.Breaker.Enabled) {
		return nil
	}
	if err := sentinels.InitDefault(); err != nil {
		return fmt.Errorf("init sentinel: %w", err)
	}
	if sc.Flow.Enabled {
		if rules := FlowRules(sc.Flow.Rules); len(rules) > 0 {
			if _, err := flow.LoadRules(rules); err != nil {
				return fmt.Errorf("load flow rules: %w", err)
			}
		}
	}
	if sc.Breaker.Enabled {
		if rules := BreakerRules(sc.Breaker.Rules); len(rules) > 0 {
			if _, err := circuitbreaker.LoadRules(rules); err != nil {
				return fmt.Errorf("load circuit breaker rules: %w", err)
			}
		}
	}
	return nil
}

func FlowRules(in []FlowRule) []*flow.Rule {
	var out []*flow.Rule
	for _, rule := range in {
		if rule.Resource == "" {
			continue
		}
		r := &flow.Rule{
			Resource:         rule.Resource,
			Threshold:        rule.Threshold,
			StatIntervalInMs: rule.StatIntervalMs,
		}
		switch strings.ToLower(rule.Strategy) {
		case "warmup":
			r.TokenCalculateStrategy = flow.WarmUp
			r.WarmUpPeriodSec = rule.WarmUpSec
			r.WarmUpColdFactor = rule.WarmUpColdFactor
		case "memory_adaptive":
			r.TokenCalculateStrategy = flow.MemoryAdaptive
		default:
			r.TokenCalculateStrategy = flow.Direct
		}
		switch strings.ToLower(rule.Control) {
		case "throttling":
			r.ControlBehavior = flow.Throttling
			r.MaxQueueingTimeMs = rule.MaxQueueWaitMs
		default:
			r.ControlBehavior = flow.Reject
		}
		out = append(out, r)
	}
	return out
}

func BreakerRules(in []BreakerRule) []*circuitbreaker.Rule {
	var out []*circuitbreaker.Rule
	for _, rule := range in {
		if rule.Resource == "" {
			continue
		}
		r := &circuitbreaker.Rule{
			Resource:         rule.Resource,
			Threshold:        rule.Threshold,
			StatIntervalMs:   rule.StatIntervalMs,
			MinRequestAmount: rule.MinRequestAmount,
			RetryTimeoutMs:   rule.RetryTimeoutMs,
		}
		switch strings.ToLower(rule.Strategy) {
		case "error_count":
			r.Strategy = circuitbreaker.ErrorCount
		case "slow_request_ratio":
			r.Strategy = circuitbreaker.SlowRequestRatio
		default:
			r.Strategy = circuitbreaker.ErrorRatio
		}
		out = append(out, r)
	}
	return out
}
