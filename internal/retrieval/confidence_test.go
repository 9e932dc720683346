package retrieval

import "testing"

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name string
		top  float64
		avg  float64
		want Tier
	}{
		{"top below reject", 0.59, 0.50, TierReject},
		{"top exactly at reject", 0.60, 0.55, TierLow},
		{"avg below low", 0.90, 0.70, TierLow},
		{"top below low", 0.74, 0.80, TierLow},
		{"avg below medium", 0.90, 0.80, TierMedium},
		{"avg exactly at medium", 0.90, 0.85, TierHigh},
		{"both high", 0.95, 0.92, TierHigh},
		{"zero", 0, 0, TierReject},
		{"perfect", 1, 1, TierHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Classify(tt.top, tt.avg); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.top, tt.avg, got, tt.want)
			}
		})
	}
}

// Crossing the reject threshold downward flips a shown result set into an
// abstention.
func TestThresholds_RejectBoundaryFlip(t *testing.T) {
	th := DefaultThresholds()

	if got := th.Classify(0.61, 0.61); got == TierReject {
		t.Errorf("Classify(0.61, 0.61) = REJECT, want results shown")
	}
	if got := th.Classify(0.59, 0.59); got != TierReject {
		t.Errorf("Classify(0.59, 0.59) = %v, want REJECT", got)
	}
}

func TestThresholds_Configurable(t *testing.T) {
	th := Thresholds{Reject: 0.30, Low: 0.40, Medium: 0.50}

	if got := th.Classify(0.59, 0.55); got != TierHigh {
		t.Errorf("custom thresholds: Classify(0.59, 0.55) = %v, want HIGH", got)
	}
	if got := th.Classify(0.29, 0.20); got != TierReject {
		t.Errorf("custom thresholds: Classify(0.29, 0.20) = %v, want REJECT", got)
	}
}
