// Package retrieval implements the read path over the feedback corpus:
// compiling caller filters, running similarity search or metadata
// fetches, gating results by confidence and rendering them into the
// single string the agent callers consume.
package retrieval

// Tier grades the semantic quality of a result set.
type Tier string

const (
	// TierReject abstains: the best match is too weak to show at all.
	TierReject Tier = "REJECT"
	// TierLow returns results flagged with an explicit caution.
	TierLow Tier = "LOW"
	// TierMedium returns results of acceptable quality.
	TierMedium Tier = "MEDIUM"
	// TierHigh returns results of high quality.
	TierHigh Tier = "HIGH"
)

// Thresholds holds the similarity cutoffs for the confidence tiers.
// The defaults are tuned for text-embedding-ada-002; a different
// embedding model needs its own values, which is why they are
// configuration rather than constants.
type Thresholds struct {
	// Reject is the floor for the best match. Below it, no results are
	// shown at all.
	// Default: 0.60
	Reject float64 `yaml:"reject"`

	// Low is the floor for both the best match and the average. Below
	// it, results carry a low-confidence caution.
	// Default: 0.75
	Low float64 `yaml:"low"`

	// Medium is the average floor separating acceptable from high
	// quality.
	// Default: 0.85
	Medium float64 `yaml:"medium"`
}

// DefaultThresholds returns the ada-002 tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Reject: 0.60,
		Low:    0.75,
		Medium: 0.85,
	}
}

// Classify maps a (top, avg) similarity pair to exactly one tier. The
// checks run in priority order: reject first, then low, then medium,
// otherwise high. Classification depends only on the two similarities,
// never on result count or query content.
func (t Thresholds) Classify(top, avg float64) Tier {
	switch {
	case top < t.Reject:
		return TierReject
	case avg < t.Low || top < t.Low:
		return TierLow
	case avg < t.Medium:
		return TierMedium
	default:
		return TierHigh
	}
}
