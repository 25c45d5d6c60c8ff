package domain

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is a closed set of tiers. Every value maps to a Profile through
// Profiles, so there is no lookup that can miss.
type Difficulty uint8

const (
	DifficultyBeginner Difficulty = iota
	DifficultyIntermediate
	DifficultyAdvanced
	DifficultyElite

	difficultyCount
)

// DefaultDifficulty is used whenever a tier name cannot be resolved.
const DefaultDifficulty = DifficultyIntermediate

var difficultyNames = [difficultyCount]string{
	DifficultyBeginner:     "beginner",
	DifficultyIntermediate: "intermediate",
	DifficultyAdvanced:     "advanced",
	DifficultyElite:        "elite",
}

// Difficulties returns every tier, easiest first.
func Difficulties() []Difficulty {
	ds := make([]Difficulty, 0, difficultyCount)
	for d := Difficulty(0); d < difficultyCount; d++ {
		ds = append(ds, d)
	}
	return ds
}

func (d Difficulty) Valid() bool { return d < difficultyCount }

func (d Difficulty) String() string {
	if !d.Valid() {
		return fmt.Sprintf("difficulty(%d)", uint8(d))
	}
	return difficultyNames[d]
}

// ParseDifficulty resolves a tier name case-insensitively.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range difficultyNames {
		if name == s {
			return Difficulty(d), true
		}
	}
	return DefaultDifficulty, false
}

// DifficultyOrDefault resolves a tier name, falling back to DefaultDifficulty.
func DifficultyOrDefault(s string) Difficulty {
	d, _ := ParseDifficulty(s)
	return d
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("domain: invalid difficulty %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, ok := ParseDifficulty(string(b))
	if !ok {
		return fmt.Errorf("domain: unknown difficulty %q", b)
	}
	*d = v
	return nil
}

// Profile is the timing of one difficulty tier.
type Profile struct {
	Lifespan      time.Duration
	SpawnInterval time.Duration
}

// Profiles is a total mapping from Difficulty to Profile.
type Profiles [difficultyCount]Profile

// DefaultProfiles returns the built-in tier timings.
func DefaultProfiles() Profiles {
	return Profiles{
		DifficultyBeginner:     {Lifespan: 2500 * time.Millisecond, SpawnInterval: 1200 * time.Millisecond},
		DifficultyIntermediate: {Lifespan: 1800 * time.Millisecond, SpawnInterval: 1000 * time.Millisecond},
		DifficultyAdvanced:     {Lifespan: 1200 * time.Millisecond, SpawnInterval: 800 * time.Millisecond},
		DifficultyElite:        {Lifespan: 800 * time.Millisecond, SpawnInterval: 600 * time.Millisecond},
	}
}

// For returns the profile of d, or of DefaultDifficulty when d is out of range.
func (p Profiles) For(d Difficulty) Profile {
	if !d.Valid() {
		d = DefaultDifficulty
	}
	return p[d]
}
