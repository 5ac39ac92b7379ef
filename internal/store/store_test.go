package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestReadMissingDocumentIsNotFound(t *testing.T) {
	s := newTestStore(t)
	var agents []model.Agent
	err := s.Read(DocAgents, &agents)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestWriteThenRead(t *testing.T) {
	s := newTestStore(t)
	in := []model.Agent{{ID: "TRADER_01", Role: model.RoleTrader, CreatedAt: time.Now().UTC()}}
	require.NoError(t, s.Write(DocAgents, in))

	var out []model.Agent
	require.NoError(t, s.Read(DocAgents, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "TRADER_01", out[0].ID)
}

func TestWriteIsPrettyPrinted(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write(DocSectors, []model.Sector{{ID: "s1", Name: "Tech"}}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "sectors.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ")
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write(DocAgents, []model.Agent{{ID: "A"}}))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestUpdateInitializesMissingDocument(t *testing.T) {
	s := newTestStore(t)
	out, err := Update(s, DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		assert.Empty(t, cur)
		return append(cur, model.Agent{ID: "A"}), nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestUpdateErrorLeavesPriorStateVisible(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write(DocAgents, []model.Agent{{ID: "A"}}))

	_, err := Update(s, DocAgents, func(cur []model.Agent) ([]model.Agent, error) {
		return nil, assert.AnError
	})
	require.Error(t, err)

	agents, err := Agents(s)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "A", agents[0].ID)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	s := newTestStore(t)
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Update(s, DocComms, func(cur []model.CrossSectorMessage) ([]model.CrossSectorMessage, error) {
				return append(cur, model.CrossSectorMessage{ID: "m"}), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := Comms(s)
	require.NoError(t, err)
	assert.Len(t, msgs, workers)
}

func TestLoadMissingDocumentReturnsZero(t *testing.T) {
	s := newTestStore(t)
	sectors, err := Sectors(s)
	require.NoError(t, err)
	assert.Empty(t, sectors)
}

func TestDedupeAgentsKeepsFirstSeen(t *testing.T) {
	in := []model.Agent{
		{ID: "A", Name: "first"},
		{ID: "B"},
		{ID: "A", Name: "second"},
	}
	out := DedupeAgents(in)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Name)
}
