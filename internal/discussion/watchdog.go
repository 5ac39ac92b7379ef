package discussion

import (
	"context"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// SweepStalled force-resolves every IN_PROGRESS room that has not been
// touched for StallThreshold. Available signals are voted as usual; a
// room with none decides HOLD with confidence 0 and conflictScore 1.0.
// Resolved rooms are closed with reason "stalled", which guarantees
// liveness when the oracle hangs or no participant responded.
func (e *Engine) SweepStalled(ctx context.Context) {
	rooms, err := store.Discussions(e.store)
	if err != nil {
		e.log.Error().Err(err).Msg("Watchdog could not load discussions")
		return
	}

	now := e.now()
	for _, room := range rooms {
		if room.Status != model.DiscussionInProgress {
			continue
		}
		if now.Sub(room.UpdatedAt) < e.cfg.StallThreshold {
			continue
		}

		e.log.Warn().
			Str("discussion_id", room.ID).
			Time("last_update", room.UpdatedAt).
			Msg("Force-resolving stalled discussion")

		signals := e.enrichWinRates(roomSignals(room))
		decision := e.votes.Decide(signals)
		if len(signals) == 0 {
			decision = model.DiscussionDecision{
				Action:        model.ActionHold,
				Confidence:    0,
				Rationale:     "stalled with no signals",
				VoteBreakdown: map[model.Action]float64{},
				ConflictScore: 1.0,
			}
		}

		if _, err := e.commitDecision(room.ID, decision); err != nil {
			e.log.Error().Err(err).Str("discussion_id", room.ID).Msg("Watchdog decision failed")
			continue
		}
		if _, err := e.Close(ctx, room.ID, "stalled"); err != nil {
			e.log.Error().Err(err).Str("discussion_id", room.ID).Msg("Watchdog close failed")
			continue
		}
		e.metrics.WatchdogResolves.Inc()

		if ctx.Err() != nil {
			return
		}
	}
}
