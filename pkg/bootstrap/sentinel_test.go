package bootstrap

import (
	"testing"

	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowRules(t *testing.T) {
	rules := FlowRules([]FlowRule{
		{Resource: ""},
		{Resource: "/bank.v1.Bank/Withdraw", Threshold: 100, Control: "throttling", MaxQueueWaitMs: 50},
		{Resource: "/bank.v1.Bank/Deposit", Threshold: 10, Strategy: "warmup", WarmUpSec: 5},
	})
	require.Len(t, rules, 2)
	assert.Equal(t, flow.Throttling, rules[0].ControlBehavior)
	assert.Equal(t, uint32(50), rules[0].MaxQueueingTimeMs)
	assert.Equal(t, flow.WarmUp, rules[1].TokenCalculateStrategy)
	assert.Equal(t, flow.Reject, rules[1].ControlBehavior)
}

func TestBreakerRules(t *testing.T) {
	rules := BreakerRules([]BreakerRule{{Resource: "x", Strategy: "error_count"}, {Resource: "y"}})
	require.Len(t, rules, 2)
	assert.Equal(t, circuitbreaker.ErrorCount, rules[0].Strategy)
	assert.Equal(t, circuitbreaker.ErrorRatio, rules[1].Strategy)
}

func TestInitSentinel_DisabledIsNoop(t *testing.T) {
	assert.NoError(t, InitSentinel(nil))
	assert.NoError(t, InitSentinel(&SentinelCfg{}))
}
