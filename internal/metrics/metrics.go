// Package metrics is an in-memory Prometheus-style exporter, adapted from
// the teacher's HTTP/LLM/search/retention counters to this engine's own
// domain: orchestrator tier attempts, cache lookups, circuit breaker
// transitions, rate-limit decisions, and content validator verdicts. The
// shape (mutex-guarded maps keyed by small structs, one Export() producing
// sorted deterministic Prometheus text) is kept as-is.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type tierAttemptKey struct {
	strategy string
	tier     string
	outcome  string // success, failed, content_absent, rejected
}

type tierLatencyKey struct {
	strategy string
	tier     string
}

type cacheKey struct {
	backend string // remote, local
	outcome string // hit, miss, error
}

type breakerTransitionKey struct {
	dependency string
	from       string
	to         string
}

type rateLimitKey struct {
	key     string
	allowed string // true, false
}

type validatorKey struct {
	sufficient string // true, false
}

var (
	mu sync.Mutex

	tierAttempts   = map[tierAttemptKey]int64{}
	tierLatencySum = map[tierLatencyKey]int64{}
	tierLatencyCnt = map[tierLatencyKey]int64{}

	cacheLookups = map[cacheKey]int64{}

	breakerTransitions = map[breakerTransitionKey]int64{}

	rateLimitDecisions = map[rateLimitKey]int64{}

	validatorVerdicts = map[validatorKey]int64{}
)

// RecordTierAttempt records one orchestrator tier attempt's outcome and
// execution time.
func RecordTierAttempt(strategy, tier, outcome string, durationMs int64) {
	mu.Lock()
	defer mu.Unlock()
	tierAttempts[tierAttemptKey{strategy: strategy, tier: tier, outcome: outcome}]++
	lk := tierLatencyKey{strategy: strategy, tier: tier}
	tierLatencySum[lk] += durationMs
	tierLatencyCnt[lk]++
}

// RecordCacheLookup records one cache.Manager Get outcome (hit, miss or
// error) against backend ("remote" or "local").
func RecordCacheLookup(backend, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	cacheLookups[cacheKey{backend: backend, outcome: outcome}]++
}

// RecordBreakerTransition records one circuit breaker state change.
func RecordBreakerTransition(dependency, from, to string) {
	mu.Lock()
	defer mu.Unlock()
	breakerTransitions[breakerTransitionKey{dependency: dependency, from: from, to: to}]++
}

// RecordRateLimitDecision records one sliding-window rate limiter decision.
func RecordRateLimitDecision(key string, allowed bool) {
	mu.Lock()
	defer mu.Unlock()
	rateLimitDecisions[rateLimitKey{key: key, allowed: boolLabel(allowed)}]++
}

// RecordValidatorVerdict records one content validator sufficiency verdict.
func RecordValidatorVerdict(sufficient bool) {
	mu.Lock()
	defer mu.Unlock()
	validatorVerdicts[validatorKey{sufficient: boolLabel(sufficient)}]++
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Export renders all recorded counters as Prometheus text exposition
// format, with map keys sorted for deterministic output.
func Export() string {
	mu.Lock()
	defer mu.Unlock()

	var b strings.Builder

	b.WriteString("# HELP scrapeengine_tier_attempts_total Orchestrator tier attempts by strategy, tier and outcome.\n")
	b.WriteString("# TYPE scrapeengine_tier_attempts_total counter\n")
	for _, k := range sortedTierAttemptKeys() {
		fmt.Fprintf(&b, "scrapeengine_tier_attempts_total{strategy=%q,tier=%q,outcome=%q} %d\n",
			k.strategy, k.tier, k.outcome, tierAttempts[k])
	}

	b.WriteString("# HELP scrapeengine_tier_duration_ms_sum Sum of tier execution time in milliseconds.\n")
	b.WriteString("# TYPE scrapeengine_tier_duration_ms_sum counter\n")
	b.WriteString("# HELP scrapeengine_tier_duration_ms_count Count of tier executions measured.\n")
	b.WriteString("# TYPE scrapeengine_tier_duration_ms_count counter\n")
	for _, k := range sortedTierLatencyKeys() {
		fmt.Fprintf(&b, "scrapeengine_tier_duration_ms_sum{strategy=%q,tier=%q} %d\n", k.strategy, k.tier, tierLatencySum[k])
		fmt.Fprintf(&b, "scrapeengine_tier_duration_ms_count{strategy=%q,tier=%q} %d\n", k.strategy, k.tier, tierLatencyCnt[k])
	}

	b.WriteString("# HELP scrapeengine_cache_lookups_total Cache lookups by backend and outcome.\n")
	b.WriteString("# TYPE scrapeengine_cache_lookups_total counter\n")
	for _, k := range sortedCacheKeys() {
		fmt.Fprintf(&b, "scrapeengine_cache_lookups_total{backend=%q,outcome=%q} %d\n", k.backend, k.outcome, cacheLookups[k])
	}

	b.WriteString("# HELP scrapeengine_breaker_transitions_total Circuit breaker state transitions by dependency.\n")
	b.WriteString("# TYPE scrapeengine_breaker_transitions_total counter\n")
	for _, k := range sortedBreakerKeys() {
		fmt.Fprintf(&b, "scrapeengine_breaker_transitions_total{dependency=%q,from=%q,to=%q} %d\n",
			k.dependency, k.from, k.to, breakerTransitions[k])
	}

	b.WriteString("# HELP scrapeengine_rate_limit_decisions_total Rate limiter allow/deny decisions by key.\n")
	b.WriteString("# TYPE scrapeengine_rate_limit_decisions_total counter\n")
	for _, k := range sortedRateLimitKeys() {
		fmt.Fprintf(&b, "scrapeengine_rate_limit_decisions_total{key=%q,allowed=%q} %d\n", k.key, k.allowed, rateLimitDecisions[k])
	}

	b.WriteString("# HELP scrapeengine_validator_verdicts_total Content validator sufficiency verdicts.\n")
	b.WriteString("# TYPE scrapeengine_validator_verdicts_total counter\n")
	for _, k := range sortedValidatorKeys() {
		fmt.Fprintf(&b, "scrapeengine_validator_verdicts_total{sufficient=%q} %d\n", k.sufficient, validatorVerdicts[k])
	}

	return b.String()
}

func sortedTierAttemptKeys() []tierAttemptKey {
	keys := make([]tierAttemptKey, 0, len(tierAttempts))
	for k := range tierAttempts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		if keys[i].tier != keys[j].tier {
			return keys[i].tier < keys[j].tier
		}
		return keys[i].outcome < keys[j].outcome
	})
	return keys
}

func sortedTierLatencyKeys() []tierLatencyKey {
	keys := make([]tierLatencyKey, 0, len(tierLatencyCnt))
	for k := range tierLatencyCnt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		return keys[i].tier < keys[j].tier
	})
	return keys
}

func sortedCacheKeys() []cacheKey {
	keys := make([]cacheKey, 0, len(cacheLookups))
	for k := range cacheLookups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].backend != keys[j].backend {
			return keys[i].backend < keys[j].backend
		}
		return keys[i].outcome < keys[j].outcome
	})
	return keys
}

func sortedBreakerKeys() []breakerTransitionKey {
	keys := make([]breakerTransitionKey, 0, len(breakerTransitions))
	for k := range breakerTransitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dependency != keys[j].dependency {
			return keys[i].dependency < keys[j].dependency
		}
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})
	return keys
}

func sortedRateLimitKeys() []rateLimitKey {
	keys := make([]rateLimitKey, 0, len(rateLimitDecisions))
	for k := range rateLimitDecisions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].allowed < keys[j].allowed
	})
	return keys
}

func sortedValidatorKeys() []validatorKey {
	keys := make([]validatorKey, 0, len(validatorVerdicts))
	for k := range validatorVerdicts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].sufficient < keys[j].sufficient })
	return keys
}
