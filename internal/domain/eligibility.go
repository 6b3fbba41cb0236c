package domain

// EligibilityReason explains an eligibility decision.
type EligibilityReason string

const (
	ReasonNoLocation EligibilityReason = "no-location"
	ReasonTooFar     EligibilityReason = "too-far"
	ReasonOK         EligibilityReason = "ok"
)

// Eligibility is the outcome of the proximity gate. Distance is nil when no
// current coordinate was available.
type Eligibility struct {
	Allowed  bool              `json:"allowed"`
	Distance *float64          `json:"distance_meters,omitempty"`
	Reason   EligibilityReason `json:"reason"`
}

// EvaluateEligibility decides whether a player at current may claim a target
// at target. The radius is inclusive.
func EvaluateEligibility(current *Coordinate, target Coordinate, thresholdMeters float64) Eligibility {
	if current == nil {
		return Eligibility{Allowed: false, Reason: ReasonNoLocation}
	}

	d := DistanceMeters(*current, target)
	if d <= thresholdMeters {
		return Eligibility{Allowed: true, Distance: &d, Reason: ReasonOK}
	}
	return Eligibility{Allowed: false, Distance: &d, Reason: ReasonTooFar}
}
