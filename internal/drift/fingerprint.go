package drift

import "github.com/wardenhq/warden/internal/domain/agent"

// Fingerprint distance blends the categorical (frame, action) distribution
// with the failure rate. The distribution dominates; failure rate catches
// an agent that keeps doing the same things but starts failing at them.
const (
	distributionWeight = 0.7
	failureRateWeight  = 0.3
)

// fingerprint is a behavioral summary of a window of operations.
type fingerprint struct {
	freq        map[string]float64 // normalized (frame, action) frequencies
	failureRate float64
}

func pairKey(frame, action string) string {
	return frame + "\x1f" + action
}

func fingerprintOf(ops []agent.OperationEntry) fingerprint {
	fp := fingerprint{freq: make(map[string]float64, len(ops))}
	if len(ops) == 0 {
		return fp
	}
	failures := 0
	for i := range ops {
		fp.freq[pairKey(ops[i].Frame, ops[i].Action)]++
		if ops[i].Outcome == agent.OutcomeFailure {
			failures++
		}
	}
	n := float64(len(ops))
	for k := range fp.freq {
		fp.freq[k] /= n
	}
	fp.failureRate = float64(failures) / n
	return fp
}

// distance returns the normalized divergence between two fingerprints in
// [0, 1]. Identical fingerprints yield 0; disjoint distributions yield
// the distribution weight plus any failure delta.
func distance(base, recent fingerprint) float64 {
	var l1 float64
	for k, bv := range base.freq {
		rv := recent.freq[k]
		if bv > rv {
			l1 += bv - rv
		} else {
			l1 += rv - bv
		}
	}
	for k, rv := range recent.freq {
		if _, seen := base.freq[k]; !seen {
			l1 += rv
		}
	}
	// l1 of two probability distributions is in [0, 2].
	d := distributionWeight * (l1 / 2)

	fd := recent.failureRate - base.failureRate
	if fd < 0 {
		fd = -fd
	}
	d += failureRateWeight * fd

	return clamp01(d)
}

// behaviorScore splits the history window into an older baseline half and
// a recent half and returns their fingerprint distance. Fewer than
// minSamples operations resolve to 0: no false positives on cold start.
func behaviorScore(ops []agent.OperationEntry, minSamples int) float64 {
	if minSamples < 2 {
		minSamples = 2
	}
	if len(ops) < minSamples {
		return 0
	}
	mid := len(ops) / 2
	return distance(fingerprintOf(ops[:mid]), fingerprintOf(ops[mid:]))
}

// pairDeviation measures how unusual a (frame, action) pair is for an
// agent: 1 minus the pair's observed frequency over the history window.
// An empty or sub-minimum history resolves to 0.
func pairDeviation(ops []agent.OperationEntry, frame, action string, minSamples int) float64 {
	if len(ops) == 0 || len(ops) < minSamples {
		return 0
	}
	key := pairKey(frame, action)
	seen := 0
	for i := range ops {
		if pairKey(ops[i].Frame, ops[i].Action) == key {
			seen++
		}
	}
	return clamp01(1 - float64(seen)/float64(len(ops)))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
