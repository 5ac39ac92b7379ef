package model

import (
	"strings"
	"time"
)

// MaxPriceHistory bounds the per-sector price ring.
const MaxPriceHistory = 288

// PricePoint is one sample in a sector's bounded price ring.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// SectorPerformance accumulates realized P&L for a sector.
type SectorPerformance struct {
	TotalPL float64 `json:"totalPL"`
}

// Sector is a persisted trading sector. Price never drops below 0.01 once
// initialized; balance only mutates via explicit deposit or execution.
type Sector struct {
	ID           string            `json:"id"` // UUID
	Name         string            `json:"name"`
	Symbol       string            `json:"symbol"`
	CurrentPrice float64           `json:"currentPrice"`
	Volatility   float64           `json:"volatility"` // [0,1]
	RiskScore    float64           `json:"riskScore"`  // [0,100]
	Balance      float64           `json:"balance"`
	Performance  SectorPerformance `json:"performance"`
	Discussion   string            `json:"discussion,omitempty"` // current open discussion id
	PriceHistory []PricePoint      `json:"priceHistory"`
	Agents       []string          `json:"agents"` // mirror of member agent ids
	ActiveAgents int               `json:"activeAgents"`

	// Forward-compatible metadata; persisted but never triggered.
	NeedsRefinement        bool `json:"needsRefinement"`
	ActiveRefinementCycles int  `json:"activeRefinementCycles"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultSymbol derives a sector symbol from its name: the first four
// characters, upper-cased.
func DefaultSymbol(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "")
	if len(s) > 4 {
		s = s[:4]
	}
	return s
}

// RecordPrice appends a price sample to the bounded ring.
func (s *Sector) RecordPrice(price float64, now time.Time) {
	s.PriceHistory = append(s.PriceHistory, PricePoint{Price: price, Timestamp: now})
	if n := len(s.PriceHistory); n > MaxPriceHistory {
		s.PriceHistory = s.PriceHistory[n-MaxPriceHistory:]
	}
}

// HasAgent reports whether the sector mirror list contains id.
func (s *Sector) HasAgent(id string) bool {
	for _, a := range s.Agents {
		if a == id {
			return true
		}
	}
	return false
}

// PriceSample is one row of the global priceHistory document.
type PriceSample struct {
	SectorID  string    `json:"sectorId"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionLog records a committed decision applied to a sector.
type ExecutionLog struct {
	ID          string    `json:"id"`
	SectorID    string    `json:"sectorId"`
	Action      Action    `json:"action"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
	ChecklistID string    `json:"checklistId,omitempty"`
	Results     []string  `json:"results"`
}
