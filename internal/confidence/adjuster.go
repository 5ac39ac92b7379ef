package confidence

import "github.com/ayushsreejith06/sectorflow/internal/model"

// ApplyConsensus rewrites agent confidences after a decision. Non-manager
// agents take the confidence extracted from their signal, mapped from the
// [0,1] signal scale to the [-100,100] agent scale. Manager agents take
// the mean of the non-manager confidences in their sector; a manager with
// no peers just has its current value re-clamped.
//
// agents is mutated in place. signalConfidence is keyed by agent id and
// holds signal-scale values in [0,1].
func ApplyConsensus(agents []model.Agent, sectorID string, signalConfidence map[string]float64) {
	var sum float64
	var count int

	for i := range agents {
		a := &agents[i]
		if a.SectorID != sectorID || a.IsManager() {
			continue
		}
		if conf, ok := signalConfidence[a.ID]; ok {
			a.Confidence = model.ClampAgentConfidence(100 * conf)
		}
		sum += a.Confidence
		count++
	}

	for i := range agents {
		a := &agents[i]
		if a.SectorID != sectorID || !a.IsManager() {
			continue
		}
		if count > 0 {
			a.Confidence = model.ClampAgentConfidence(sum / float64(count))
		} else {
			a.Confidence = model.ClampAgentConfidence(a.Confidence)
		}
	}
}
