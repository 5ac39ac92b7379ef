// Package market simulates sector price movement. Each tick advances
// volatility by a bounded random walk, derives a new price from manager
// impact, noise and a decaying per-sector trend, and recomputes the risk
// score.
package market

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushsreejith06/sectorflow/internal/model"
)

const (
	// InitialPrice seeds sectors that have never ticked.
	InitialPrice = 100.0

	minPrice          = 0.01
	noiseRange        = 0.01
	volatilityStep    = 0.05
	trendDecay        = 0.95
	trendKick         = 0.002
	managerImpactStep = 0.001
)

// Update is the result of advancing one sector by one price tick.
type Update struct {
	Price         float64
	Volatility    float64
	RiskScore     float64
	ChangePercent float64
	Sample        model.PriceSample
}

// Simulator advances sector prices. Trend state is per sector and decays
// each tick; the random source is injected so simulations are
// reproducible under test.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	trends map[string]float64
	log    zerolog.Logger
}

// NewSimulator creates a price simulator. A nil rng falls back to the
// package-global source.
func NewSimulator(rng *rand.Rand, log zerolog.Logger) *Simulator {
	return &Simulator{
		rng:    rng,
		trends: make(map[string]float64),
		log:    log.With().Str("component", "market").Logger(),
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	var f float64
	if s.rng != nil {
		f = s.rng.Float64()
	} else {
		f = rand.Float64()
	}
	return lo + f*(hi-lo)
}

// Advance computes the next price point for the sector. managerImpact is
// +1 after a committed BUY, -1 after a SELL, 0 otherwise. The sector is
// not mutated; callers persist the returned update through the store.
func (s *Simulator) Advance(sector model.Sector, managerImpact int, now time.Time) Update {
	s.mu.Lock()
	trend := s.trends[sector.ID]*trendDecay + s.uniform(-trendKick, trendKick)
	s.trends[sector.ID] = trend

	prev := sector.CurrentPrice
	if prev <= 0 {
		prev = InitialPrice
	}

	volatility := model.Clamp(sector.Volatility+s.uniform(-volatilityStep, volatilityStep), 0, 1)
	noise := s.uniform(-noiseRange, noiseRange)
	s.mu.Unlock()

	price := prev * (1 + float64(managerImpact)*managerImpactStep + noise + trend)
	if price < minPrice {
		price = minPrice
	}

	changePercent := 0.0
	if sector.CurrentPrice > 0 {
		changePercent = (price - sector.CurrentPrice) / sector.CurrentPrice * 100
	}

	riskScore := model.Clamp(70*volatility+3*math.Abs(changePercent), 0, 100)

	s.log.Debug().
		Str("sector_id", sector.ID).
		Float64("price", price).
		Float64("volatility", volatility).
		Float64("change_percent", changePercent).
		Msg("Price advanced")

	return Update{
		Price:         price,
		Volatility:    volatility,
		RiskScore:     riskScore,
		ChangePercent: changePercent,
		Sample: model.PriceSample{
			SectorID:  sector.ID,
			Price:     price,
			Timestamp: now,
		},
	}
}

// ChangePercent reports the percent move between the oldest retained
// history point and the current price. Returns 0 with no usable history.
func ChangePercent(sector model.Sector) float64 {
	if len(sector.PriceHistory) == 0 || sector.CurrentPrice <= 0 {
		return 0
	}
	base := sector.PriceHistory[0].Price
	if base <= 0 {
		return 0
	}
	return (sector.CurrentPrice - base) / base * 100
}
