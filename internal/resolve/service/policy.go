package service

import "label-resolver/internal/resolve/model"

// Tier thresholds.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.6
)

// Weights of the whole-utterance score.
const (
	coverageWeight   = 0.6
	confidenceWeight = 0.4
)

func TierOf(confidence float64) model.Tier {
	switch {
	case confidence >= HighThreshold:
		return model.TierHigh
	case confidence >= MediumThreshold:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// Policy decides what happens to a local resolution. RemoteEnabled is the
// capability flag for the remote parser; without it deferred entries stay local.
type Policy struct {
	RemoteEnabled bool
}

func (p Policy) Decide(e model.ResolvedEntry) model.Decision {
	if !e.Resolved() {
		return model.DecisionDefer
	}
	switch TierOf(e.Confidence) {
	case model.TierHigh:
		return model.DecisionAccept
	case model.TierMedium:
		return model.DecisionAcceptWithWarning
	default:
		return model.DecisionDefer
	}
}

// ShouldFallback reports whether the remote parser should be asked about e.
func (p Policy) ShouldFallback(e model.ResolvedEntry) bool {
	return p.RemoteEnabled && p.Decide(e) == model.DecisionDefer
}

// NeedsLearning reports whether a confirmed pick with this local confidence
// should be remembered as an alias.
func NeedsLearning(confidence float64) bool {
	return confidence < MediumThreshold
}

// Aggregate summarizes entries; Score is only meant for comparing
// alternative readings of the same utterance.
func Aggregate(entries []model.ResolvedEntry) model.Aggregate {
	agg := model.Aggregate{Segments: len(entries), Tier: model.TierLow}
	if len(entries) == 0 {
		return agg
	}
	var sum float64
	for _, e := range entries {
		if e.Resolved() {
			agg.Resolved++
		}
		sum += e.Confidence
	}
	n := float64(len(entries))
	agg.Coverage = float64(agg.Resolved) / n
	agg.AvgConfidence = sum / n
	agg.Score = coverageWeight*agg.Coverage + confidenceWeight*agg.AvgConfidence
	agg.Tier = TierOf(agg.AvgConfidence)
	return agg
}
