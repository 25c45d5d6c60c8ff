package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
)

func TestParseDifficulty(t *testing.T) {
	tests := map[string]struct {
		in   string
		want domain.Difficulty
		ok   bool
	}{
		"exact":             {in: "elite", want: domain.DifficultyElite, ok: true},
		"case and space":    {in: "  Beginner ", want: domain.DifficultyBeginner, ok: true},
		"unknown":           {in: "godlike", want: domain.DefaultDifficulty},
		"empty":             {in: "", want: domain.DefaultDifficulty},
		"default is listed": {in: "intermediate", want: domain.DifficultyIntermediate, ok: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := domain.ParseDifficulty(tt.in)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.ok, ok)
		})
	}
}

func TestProfiles_For(t *testing.T) {
	p := domain.DefaultProfiles()

	for _, d := range domain.Difficulties() {
		require.Positive(t, p.For(d).Lifespan, d)
		require.Positive(t, p.For(d).SpawnInterval, d)
	}

	require.Equal(t, 800*time.Millisecond, p.For(domain.DifficultyElite).Lifespan)
	require.Equal(t, p[domain.DefaultDifficulty], p.For(domain.Difficulty(42)), "out of range falls back to the default tier")
}

func TestSnapshotTypes_Decode(t *testing.T) {
	var v struct {
		State      domain.State      `json:"state"`
		Kind       domain.Kind       `json:"kind"`
		Difficulty domain.Difficulty `json:"difficulty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"state":"GAMEOVER","kind":"penalty","difficulty":"advanced"}`), &v))
	require.Equal(t, domain.StateGameOver, v.State)
	require.Equal(t, domain.KindPenalty, v.Kind)
	require.Equal(t, domain.DifficultyAdvanced, v.Difficulty)

	require.Error(t, json.Unmarshal([]byte(`{"state":"DONE"}`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"kind":"neutral"}`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"difficulty":"godlike"}`), &v))

	_, err := json.Marshal(struct{ D domain.Difficulty }{domain.Difficulty(9)})
	require.Error(t, err)
}
