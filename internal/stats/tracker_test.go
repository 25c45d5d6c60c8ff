package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/stats"
)

func TestTracker(t *testing.T) {
	tests := map[string]struct {
		arrange func(tr *stats.Tracker)
		want    domain.Stats
	}{
		"no interactions should report zeroes": {
			arrange: func(*stats.Tracker) {},
			want:    domain.Stats{},
		},

		"a single hit should score the bonus": {
			arrange: func(tr *stats.Tracker) {
				tr.RegisterHit(300)
			},
			want: domain.Stats{Score: 10, Hits: 1, Accuracy: 100, AvgReactionMs: 300},
		},

		"a harm on zero score should clamp to zero": {
			arrange: func(tr *stats.Tracker) {
				tr.RegisterHit(200)
				tr.RegisterHarm()
			},
			want: domain.Stats{Score: 0, Hits: 1, Harms: 1, Accuracy: 50, AvgReactionMs: 200},
		},

		"misses should not change the score": {
			arrange: func(tr *stats.Tracker) {
				tr.RegisterHit(100)
				tr.RegisterHit(100)
				tr.RegisterMiss()
			},
			want: domain.Stats{Score: 20, Hits: 2, Misses: 1, Accuracy: 66.7, AvgReactionMs: 100},
		},

		"average reaction should round to whole milliseconds": {
			arrange: func(tr *stats.Tracker) {
				tr.RegisterHit(100)
				tr.RegisterHit(101)
			},
			want: domain.Stats{Score: 20, Hits: 2, Accuracy: 100, AvgReactionMs: 101},
		},

		"reset should zero everything": {
			arrange: func(tr *stats.Tracker) {
				tr.RegisterHit(100)
				tr.RegisterMiss()
				tr.RegisterHarm()
				tr.Reset()
			},
			want: domain.Stats{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tr := stats.NewTracker(stats.Config{})
			tt.arrange(tr)
			require.Equal(t, tt.want, tr.Snapshot())
		})
	}
}

func TestTracker_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := stats.NewTracker(stats.Config{HitBonus: 10, HarmPenalty: 15})

		var hits, misses, harms, score int
		ops := rapid.SliceOf(rapid.IntRange(0, 2)).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				tr.RegisterHit(rapid.Int64Range(0, 5000).Draw(t, "reaction"))
				hits++
				score += 10
			case 1:
				tr.RegisterMiss()
				misses++
			case 2:
				tr.RegisterHarm()
				harms++
				score = max(0, score-15)
			}

			if tr.Score() < 0 {
				t.Fatalf("negative score %d", tr.Score())
			}
		}

		if tr.Score() != score {
			t.Fatalf("score = %d, want %d", tr.Score(), score)
		}

		total := hits + misses + harms
		acc := tr.Accuracy()
		if total == 0 {
			if acc != 0 {
				t.Fatalf("accuracy = %v with no interactions", acc)
			}
			return
		}
		want := float64(hits) / float64(total) * 100
		if math.Abs(acc-want) > 0.05+1e-9 {
			t.Fatalf("accuracy = %v, want %v", acc, want)
		}
	})
}
