// Package voting turns a bag of agent signals into a committed decision.
// Votes are weighted by historical win rate; a high runner-up ratio marks
// the result as conflicted and triggers cluster-based resolution.
package voting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/metrics"
	"github.com/ayushsreejith06/sectorflow/internal/model"
)

// DefaultConflictThreshold is the runner-up ratio at which a result is
// considered conflicted.
const DefaultConflictThreshold = 0.5

// Engine aggregates signals into decisions.
type Engine struct {
	conflictThreshold float64
	metrics           *metrics.Set
	log               zerolog.Logger
}

// NewEngine creates a voting engine. A non-positive threshold falls back
// to the default.
func NewEngine(conflictThreshold float64, log zerolog.Logger) *Engine {
	if conflictThreshold <= 0 {
		conflictThreshold = DefaultConflictThreshold
	}
	return &Engine{
		conflictThreshold: conflictThreshold,
		metrics:           metrics.Default(),
		log:               log.With().Str("component", "voting").Logger(),
	}
}

// cluster is the per-action aggregation of supporting signals.
type cluster struct {
	action model.Action
	// signals keep insertion order so tie-breaks are deterministic.
	signals []model.AgentSignal

	votes       int
	weightedSum float64 // sum of w_i * confidence_i
	weightSum   float64 // sum of w_i
	winRateSum  float64
}

// weightedMean is the aggregated confidence for the cluster, clamped to [0,1].
func (c *cluster) weightedMean() float64 {
	if c.weightSum == 0 {
		return 0
	}
	return model.ClampSignalConfidence(c.weightedSum / c.weightSum)
}

func (c *cluster) avgWinRate() float64 {
	if c.votes == 0 {
		return 0
	}
	return c.winRateSum / float64(c.votes)
}

// weight maps a win rate to a vote weight in [0.5, 2.0]. Agents with no
// recorded history weigh 1.0.
func weight(sig model.AgentSignal) float64 {
	if !sig.WinRateKnown {
		return 1.0
	}
	return model.Clamp(0.5+1.5*sig.WinRate, 0.5, 2.0)
}

// Decide runs the full tally, conflict detection and resolution over the
// signals and returns the committed decision. An empty bag yields a HOLD
// decision with conflictScore 1.0 so stalled discussions still terminate.
func (e *Engine) Decide(signals []model.AgentSignal) model.DiscussionDecision {
	if len(signals) == 0 {
		return model.DiscussionDecision{
			Action:        model.ActionHold,
			Confidence:    0,
			Rationale:     "no signals available",
			VoteBreakdown: map[model.Action]float64{},
			ConflictScore: 1.0,
		}
	}

	clusters := map[model.Action]*cluster{}
	for _, sig := range signals {
		c, ok := clusters[sig.Action]
		if !ok {
			c = &cluster{action: sig.Action}
			clusters[sig.Action] = c
		}
		w := weight(sig)
		c.signals = append(c.signals, sig)
		c.votes++
		c.weightedSum += w * sig.Confidence
		c.weightSum += w
		c.winRateSum += sig.WinRate
	}

	// Ranking: votes, then weighted confidence sum, then lexical order.
	// model.Actions is already in lexical order, so a stable sort over it
	// settles the final tie deterministically.
	var ranked []*cluster
	for _, a := range model.Actions {
		if c, ok := clusters[a]; ok {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].votes != ranked[j].votes {
			return ranked[i].votes > ranked[j].votes
		}
		return ranked[i].weightedSum > ranked[j].weightedSum
	})

	winner := ranked[0]

	// Conflict score: runner-up weighted confidence over the winner's.
	conflictScore := 0.0
	if len(ranked) > 1 && winner.weightedSum > 0 {
		conflictScore = model.ClampSignalConfidence(ranked[1].weightedSum / winner.weightedSum)
	}

	resolved := false
	if conflictScore >= e.conflictThreshold {
		winner = resolveConflict(ranked)
		resolved = true
	}

	breakdown := make(map[model.Action]float64, len(ranked))
	for _, c := range ranked {
		breakdown[c.action] = c.weightedMean()
	}

	decision := model.DiscussionDecision{
		Action:        winner.action,
		Confidence:    winner.weightedMean(),
		Rationale:     e.rationale(ranked, winner, conflictScore, resolved),
		VoteBreakdown: breakdown,
		ConflictScore: conflictScore,
		SelectedAgent: selectAgent(winner),
	}

	e.metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	e.metrics.ConflictScore.Observe(conflictScore)
	e.log.Debug().
		Str("action", string(decision.Action)).
		Float64("confidence", decision.Confidence).
		Float64("conflict_score", conflictScore).
		Bool("resolved", resolved).
		Msg("Vote decided")

	return decision
}

// resolveConflict picks the cluster with the highest average win rate,
// breaking ties by higher weighted confidence.
func resolveConflict(ranked []*cluster) *cluster {
	best := ranked[0]
	for _, c := range ranked[1:] {
		switch {
		case c.avgWinRate() > best.avgWinRate():
			best = c
		case c.avgWinRate() == best.avgWinRate() && c.weightedSum > best.weightedSum:
			best = c
		}
	}
	return best
}

// selectAgent returns the id of the supporting signal with the highest
// confidence·(1+winRate). Ties keep the first inserted.
func selectAgent(c *cluster) string {
	bestID := ""
	bestScore := -1.0
	for _, sig := range c.signals {
		score := sig.Confidence * (1 + sig.WinRate)
		if score > bestScore {
			bestScore = score
			bestID = sig.AgentID
		}
	}
	return bestID
}

func (e *Engine) rationale(ranked []*cluster, winner *cluster, conflictScore float64, resolved bool) string {
	var parts []string
	for _, c := range ranked {
		parts = append(parts, fmt.Sprintf("%s %d votes (confidence %.2f)", c.action, c.votes, c.weightedMean()))
	}
	summary := strings.Join(parts, ", ")
	if resolved {
		return fmt.Sprintf("conflict %.2f resolved toward %s by win-rate cluster (avg %.2f); tally: %s",
			conflictScore, winner.action, winner.avgWinRate(), summary)
	}
	return fmt.Sprintf("%s carries the vote; tally: %s", winner.action, summary)
}
