package target

import (
	"math/rand/v2"
	"time"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
)

type Config struct {
	// Radius of every target, in surface units.
	Radius float64
	// Rand defaults to a randomly seeded source.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

// Factory creates targets with per-session unique ids.
type Factory struct {
	radius float64
	rnd    *rand.Rand
	now    func() time.Time
	nextID uint64
}

func NewFactory(c Config) *Factory {
	f := &Factory{
		radius: c.Radius,
		rnd:    c.Rand,
		now:    c.Now,
	}
	if f.rnd == nil {
		f.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Create returns a target placed so its whole circle lies on a width x height
// surface. It is a penalty target with probability penaltyProbability.
func (f *Factory) Create(width, height, penaltyProbability float64) domain.Target {
	t := domain.Target{
		ID:        f.nextID,
		X:         f.coordinate(width),
		Y:         f.coordinate(height),
		Kind:      domain.KindBonus,
		SpawnedAt: f.now(),
	}
	f.nextID++

	if f.rnd.Float64() < penaltyProbability {
		t.Kind = domain.KindPenalty
		t.Color = domain.PenaltyColor
	} else {
		t.Color = domain.BonusPalette[f.rnd.IntN(len(domain.BonusPalette))]
	}

	return t
}

// Reset restarts ids from zero. Call it at session start only.
func (f *Factory) Reset() {
	f.nextID = 0
}

// coordinate samples uniformly from [radius, dimension-radius].
func (f *Factory) coordinate(dimension float64) float64 {
	span := dimension - 2*f.radius
	if span <= 0 {
		return dimension / 2
	}
	return f.radius + f.rnd.Float64()*span
}
