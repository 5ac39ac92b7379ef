package discussion

import (
	"context"

	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

// Advance runs one lifecycle pass over every room, moving each a single
// step forward where its preconditions hold. Errors on one room are
// logged and do not stop the pass.
func (e *Engine) Advance(ctx context.Context) {
	rooms, err := store.Discussions(e.store)
	if err != nil {
		e.log.Error().Err(err).Msg("Lifecycle pass could not load discussions")
		return
	}

	now := e.now()
	for _, room := range rooms {
		var err error
		switch room.Status {
		case model.DiscussionCreated:
			_, err = e.CollectArguments(ctx, room.ID)
		case model.DiscussionInProgress:
			if len(room.RoundHistory) < e.cfg.MaxRounds {
				_, err = e.CollectArguments(ctx, room.ID)
			} else {
				_, err = e.ProduceDecision(ctx, room.ID)
			}
		case model.DiscussionDecided:
			_, err = e.Close(ctx, room.ID, "")
		case model.DiscussionClosed:
			if room.ClosedAt != nil && now.Sub(*room.ClosedAt) >= e.cfg.ArchiveDelay {
				_, err = e.Archive(ctx, room.ID)
			}
		}
		if err != nil {
			e.log.Warn().Err(err).
				Str("discussion_id", room.ID).
				Str("status", string(room.Status)).
				Msg("Lifecycle step failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}
