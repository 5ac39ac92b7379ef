package store

import "github.com/ayushsreejith06/sectorflow/internal/model"

// Typed accessors for the well-known documents. Missing documents read as
// empty slices.

func Agents(s *Store) ([]model.Agent, error) {
	return Load[[]model.Agent](s, DocAgents)
}

func Sectors(s *Store) ([]model.Sector, error) {
	return Load[[]model.Sector](s, DocSectors)
}

func Discussions(s *Store) ([]model.DiscussionRoom, error) {
	return Load[[]model.DiscussionRoom](s, DocDiscussions)
}

func Comms(s *Store) ([]model.CrossSectorMessage, error) {
	return Load[[]model.CrossSectorMessage](s, DocComms)
}

func PriceSamples(s *Store) ([]model.PriceSample, error) {
	return Load[[]model.PriceSample](s, DocPriceHistory)
}

func ExecutionLogs(s *Store) ([]model.ExecutionLog, error) {
	return Load[[]model.ExecutionLog](s, DocExecutionLogs)
}

// FindAgent returns the agent with the given id, or nil.
func FindAgent(agents []model.Agent, id string) *model.Agent {
	for i := range agents {
		if agents[i].ID == id {
			return &agents[i]
		}
	}
	return nil
}

// FindSector returns the sector with the given id, or nil.
func FindSector(sectors []model.Sector, id string) *model.Sector {
	for i := range sectors {
		if sectors[i].ID == id {
			return &sectors[i]
		}
	}
	return nil
}

// FindDiscussion returns the room with the given id, or nil.
func FindDiscussion(rooms []model.DiscussionRoom, id string) *model.DiscussionRoom {
	for i := range rooms {
		if rooms[i].ID == id {
			return &rooms[i]
		}
	}
	return nil
}

// DedupeAgents drops later duplicates by id, preserving first-seen order.
// Enforced on every agent save.
func DedupeAgents(agents []model.Agent) []model.Agent {
	seen := make(map[string]struct{}, len(agents))
	out := agents[:0]
	for _, a := range agents {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
