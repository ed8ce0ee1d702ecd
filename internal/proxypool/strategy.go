package proxypool

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy names.
const (
	StrategyBestResponseTime = "best-response-time"
	StrategyRandom           = "random"
	StrategyRoundRobin       = "round-robin"
	StrategyWeighted         = "weighted"
)

// ErrUnknownStrategy reports a rotation strategy name that is not recognized.
var ErrUnknownStrategy = errors.New("unknown rotation strategy")

// weightEpsilonMs floors the weighted denominator; defaultWeightResponseMs stands in for unmeasured proxies.
const (
	weightEpsilonMs         = 1
	defaultWeightResponseMs = 1000
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Strategy picks one proxy out of a non-empty candidate list.
type Strategy interface {
	Name() string
	Select(candidates []Record) Record
}

// NewStrategy returns the strategy registered under name. Unknown names yield
// the first-candidate strategy together with ErrUnknownStrategy so callers can
// log the fallback and continue.
func NewStrategy(name string, clock Clock) (Strategy, error) {
	switch name {
	case StrategyBestResponseTime:
		return bestResponseTime{}, nil
	case StrategyRandom:
		return randomStrategy{intn: rand.IntN}, nil
	case StrategyRoundRobin:
		return roundRobin{clock: clock}, nil
	case StrategyWeighted:
		return weighted{}, nil
	default:
		return firstCandidate{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

type bestResponseTime struct{}

func (bestResponseTime) Name() string { return StrategyBestResponseTime }

func (bestResponseTime) Select(candidates []Record) Record {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if responseTimeOrInf(candidates[i]) < responseTimeOrInf(candidates[best]) {
			best = i
		}
	}
	return candidates[best]
}

type randomStrategy struct {
	intn func(int) int
}

func (randomStrategy) Name() string { return StrategyRandom }

func (s randomStrategy) Select(candidates []Record) Record {
	return candidates[s.intn(len(candidates))]
}

// roundRobin derives the index from wall-clock milliseconds and keeps no state.
type roundRobin struct {
	clock Clock
}

func (roundRobin) Name() string { return StrategyRoundRobin }

func (s roundRobin) Select(candidates []Record) Record {
	now := time.Now()
	if s.clock != nil {
		now = s.clock.Now()
	}
	ms := now.UnixMilli()
	if ms < 0 {
		ms = -ms
	}
	return candidates[ms%int64(len(candidates))]
}

type weighted struct{}

func (weighted) Name() string { return StrategyWeighted }

func (weighted) Select(candidates []Record) Record {
	best := 0
	bestScore := weightOf(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if score := weightOf(candidates[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best]
}

func weightOf(r Record) float64 {
	rt := float64(defaultWeightResponseMs)
	if r.ResponseTimeMs != nil {
		rt = float64(*r.ResponseTimeMs)
	}
	return r.UptimePercent / 100 / math.Max(rt, weightEpsilonMs)
}

type firstCandidate struct{}

func (firstCandidate) Name() string { return "first" }

func (firstCandidate) Select(candidates []Record) Record {
	return candidates[0]
}

func responseTimeOrInf(r Record) float64 {
	if r.ResponseTimeMs == nil {
		return math.Inf(1)
	}
	return float64(*r.ResponseTimeMs)
}
