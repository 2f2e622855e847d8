package identify

// EscalationPolicy reports whether the attempt chain should continue to the
// next model given the accepted-so-far confidence and verification state.
type EscalationPolicy func(confidence int, verified bool) bool

// ThresholdPolicy escalates when self-reported confidence falls below the
// threshold or reference verification failed.
func ThresholdPolicy(threshold int) EscalationPolicy {
	return func(confidence int, verified bool) bool {
		return confidence < threshold || !verified
	}
}
