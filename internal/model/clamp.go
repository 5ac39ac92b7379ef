package model

// Clamp bounds v to [lo, hi]. Idempotent: Clamp(Clamp(v)) == Clamp(v).
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampAgentConfidence bounds an agent record confidence to [-100, 100].
func ClampAgentConfidence(v float64) float64 { return Clamp(v, -100, 100) }

// ClampSignalConfidence bounds a signal confidence to [0, 1].
func ClampSignalConfidence(v float64) float64 { return Clamp(v, 0, 1) }

// ClampMorale bounds morale to [0, 100].
func ClampMorale(v float64) float64 { return Clamp(v, 0, 100) }

// ClampPercent bounds an allocation percentage to [0, 100].
func ClampPercent(v float64) float64 { return Clamp(v, 0, 100) }
