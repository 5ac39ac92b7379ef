package discussion

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/sectorflow/internal/config"
	"github.com/ayushsreejith06/sectorflow/internal/model"
	"github.com/ayushsreejith06/sectorflow/internal/oracle"
	"github.com/ayushsreejith06/sectorflow/internal/registry"
	"github.com/ayushsreejith06/sectorflow/internal/store"
)

type fixture struct {
	store   *store.Store
	agents  *registry.AgentRegistry
	sectors *registry.SectorRegistry
	engine  *Engine
	sector  model.Sector
	members []model.Agent
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxTotalAgents:     20,
		MaxAgentsPerSector: 8,
		ConflictThreshold:  0.5,
		MaxRounds:          3,
		ArchiveDelay:       time.Minute,
		StallThreshold:     2 * time.Minute,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testEngineConfig()
	st, err := store.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	agents := registry.NewAgentRegistry(st, oracle.Disabled{}, cfg, zerolog.Nop())
	sectors := registry.NewSectorRegistry(st, agents, cfg, zerolog.Nop())
	engine := NewEngine(st, agents, sectors, oracle.Disabled{}, cfg, zerolog.Nop())

	ctx := context.Background()
	sector, err := sectors.Create(ctx, "Tech", "TECH")
	require.NoError(t, err)

	var members []model.Agent
	for _, role := range []string{"research", "analyst", "trader"} {
		a, err := agents.Create(ctx, "participant", sector.ID, role)
		require.NoError(t, err)
		members = append(members, a)
	}

	return &fixture{store: st, agents: agents, sectors: sectors, engine: engine, sector: sector, members: members}
}

func TestStartRunsRoundsAndRecordsMessages(t *testing.T) {
	f := newFixture(t)
	room, err := f.engine.Start(context.Background(), f.sector.ID, "test deliberation", nil)
	require.NoError(t, err)

	assert.Equal(t, model.DiscussionInProgress, room.Status)
	assert.Len(t, room.AgentIDs, 3)
	// Three rounds, one message per participant per round.
	assert.Len(t, room.RoundHistory, 3)
	assert.Equal(t, 9, room.MessagesCount)
	assert.Equal(t, len(room.Messages), room.MessagesCount)
	for _, m := range room.Messages {
		require.NotNil(t, m.Proposal)
	}

	sector, err := f.sectors.Get(f.sector.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, sector.Discussion)
}

func TestStartIsIdempotentWhileOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.engine.Start(ctx, f.sector.ID, "one", nil)
	require.NoError(t, err)

	second, err := f.engine.Start(ctx, f.sector.ID, "two", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	rooms, err := f.engine.List()
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestOracleOutageStillProducesDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.engine.Start(ctx, f.sector.ID, "fallback only", nil)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionInProgress, room.Status)

	decided, err := f.engine.ProduceDecision(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionDecided, decided.Status)
	require.NotNil(t, decided.FinalDecision)
	require.NotNil(t, decided.DecidedAt)

	// No price history means zero change, so the deterministic policy
	// holds across the board.
	assert.Equal(t, model.ActionHold, decided.FinalDecision.Action)
	assert.GreaterOrEqual(t, decided.FinalDecision.Confidence, 0.0)
	assert.LessOrEqual(t, decided.FinalDecision.Confidence, 1.0)
}

func TestProduceDecisionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "once", nil)
	require.NoError(t, err)

	first, err := f.engine.ProduceDecision(ctx, room.ID)
	require.NoError(t, err)
	second, err := f.engine.ProduceDecision(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, first.FinalDecision, second.FinalDecision)
	assert.Equal(t, first.Status, second.Status)
}

func TestDecisionAdjustsAgentConfidenceAndMorale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "adjust", nil)
	require.NoError(t, err)

	decided, err := f.engine.ProduceDecision(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, decided.FinalDecision)

	signals := roomSignals(decided)
	require.NotEmpty(t, signals)
	signalConf := map[string]float64{}
	for _, sig := range signals {
		signalConf[sig.AgentID] = sig.Confidence
	}

	for _, m := range f.members {
		got, err := f.agents.Get(m.ID)
		require.NoError(t, err)
		want := model.ClampAgentConfidence(100 * signalConf[m.ID])
		assert.InDelta(t, want, got.Confidence, 1e-9, "agent %s", m.ID)
		// Everyone voted; nobody's morale dropped below the default on a
		// unanimous outcome.
		assert.GreaterOrEqual(t, got.Morale, 50.0)
	}
}

func TestProduceDecisionRejectsClosedRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "settled", nil)
	require.NoError(t, err)
	closed, err := f.engine.Close(ctx, room.ID, "")
	require.NoError(t, err)

	_, err = f.engine.ProduceDecision(ctx, room.ID)
	var itErr *model.IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, model.DiscussionClosed, itErr.From)

	// The committed decision is untouched.
	got, err := f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.FinalDecision, got.FinalDecision)
}

func TestStartAfterCloseOpensFreshRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.engine.Start(ctx, f.sector.ID, "one", nil)
	require.NoError(t, err)
	_, err = f.engine.Close(ctx, first.ID, "")
	require.NoError(t, err)

	second, err := f.engine.Start(ctx, f.sector.ID, "two", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	sector, err := f.sectors.Get(f.sector.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, sector.Discussion)

	rooms, err := f.engine.List()
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestCloseWithoutDecisionDecidesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "close me", nil)
	require.NoError(t, err)

	closed, err := f.engine.Close(ctx, room.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionClosed, closed.Status)
	require.NotNil(t, closed.FinalDecision)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "decided", closed.CloseReason)

	sector, err := f.sectors.Get(f.sector.ID)
	require.NoError(t, err)
	assert.Empty(t, sector.Discussion)
}

func TestArchiveMirrorsToLegacyDebates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "archive me", nil)
	require.NoError(t, err)

	archived, err := f.engine.Archive(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionArchived, archived.Status)

	debates, err := store.Load[[]model.DiscussionRoom](f.store, store.DocDebates)
	require.NoError(t, err)
	require.Len(t, debates, 1)
	assert.Equal(t, room.ID, debates[0].ID)
	assert.Nil(t, debates[0].FinalDecision)
}

func TestArchivedRoomRejectsFurtherWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "done", nil)
	require.NoError(t, err)
	_, err = f.engine.Archive(ctx, room.ID)
	require.NoError(t, err)

	_, err = f.engine.CollectArguments(ctx, room.ID)
	var itErr *model.IllegalTransitionError
	require.ErrorAs(t, err, &itErr)

	_, err = f.engine.ProduceDecision(ctx, room.ID)
	require.ErrorAs(t, err, &itErr)
}

func TestAddMessageValidatesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "chat", nil)
	require.NoError(t, err)

	_, err = f.engine.AddMessage(room.ID, f.members[0].ID, "", "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)

	msg, err := f.engine.AddMessage(room.ID, f.members[0].ID, "I disagree", "")
	require.NoError(t, err)
	assert.Equal(t, f.members[0].Name, msg.AgentName)

	got, err := f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, len(got.Messages), got.MessagesCount)
}

func TestDeleteClearsSectorPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "delete me", nil)
	require.NoError(t, err)

	require.NoError(t, f.engine.Delete(room.ID))

	_, err = f.engine.Get(room.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	sector, err := f.sectors.Get(f.sector.ID)
	require.NoError(t, err)
	assert.Empty(t, sector.Discussion)
}

func TestLifecycleAdvanceWalksStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "lifecycle", nil)
	require.NoError(t, err)

	// Rounds already exhausted by Start, so the next pass decides, the
	// one after closes.
	f.engine.Advance(ctx)
	got, err := f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionDecided, got.Status)

	f.engine.Advance(ctx)
	got, err = f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionClosed, got.Status)

	// Archive waits out the delay.
	f.engine.Advance(ctx)
	got, err = f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionClosed, got.Status)

	f.engine.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	f.engine.Advance(ctx)
	got, err = f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionArchived, got.Status)
}

func TestWatchdogForceResolvesStalledRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A room stuck IN_PROGRESS with no messages, last touched long ago.
	stale := time.Now().Add(-10 * time.Minute)
	room := model.DiscussionRoom{
		ID:           "stalled-room",
		SectorID:     f.sector.ID,
		Title:        "stalled",
		Status:       model.DiscussionInProgress,
		CurrentRound: 1,
		CreatedAt:    stale,
		UpdatedAt:    stale,
	}
	_, err := store.Update(f.store, store.DocDiscussions, func(cur []model.DiscussionRoom) ([]model.DiscussionRoom, error) {
		return append(cur, room), nil
	})
	require.NoError(t, err)

	f.engine.SweepStalled(ctx)

	got, err := f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionClosed, got.Status)
	assert.Equal(t, "stalled", got.CloseReason)
	require.NotNil(t, got.FinalDecision)
	assert.Equal(t, model.ActionHold, got.FinalDecision.Action)
	assert.Equal(t, 0.0, got.FinalDecision.Confidence)
	assert.Equal(t, 1.0, got.FinalDecision.ConflictScore)
}

func TestWatchdogLeavesFreshRoomsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.engine.Start(ctx, f.sector.ID, "fresh", nil)
	require.NoError(t, err)

	f.engine.SweepStalled(ctx)

	got, err := f.engine.Get(room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DiscussionInProgress, got.Status)
	assert.Nil(t, got.FinalDecision)
}
