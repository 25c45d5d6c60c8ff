package leaderboard_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/leaderboard"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func result(name string, score int, d domain.Difficulty) domain.SessionResult {
	return domain.SessionResult{
		PlayerName:    name,
		Score:         score,
		Accuracy:      87.5,
		AvgReactionMs: 420,
		Difficulty:    d,
		Timestamp:     now,
	}
}

func names(rs []domain.SessionResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.PlayerName)
	}
	return out
}

func storages(t *testing.T) map[string]func(t *testing.T) leaderboard.Storage {
	return map[string]func(t *testing.T) leaderboard.Storage{
		"memory": func(*testing.T) leaderboard.Storage {
			return leaderboard.NewMemoryStorage()
		},
		"file": func(t *testing.T) leaderboard.Storage {
			return leaderboard.NewFileStorage(filepath.Join(t.TempDir(), "scores", "scores.json"))
		},
		"redis": func(t *testing.T) leaderboard.Storage {
			return leaderboard.NewRedisStorage(makeRedis(t), "")
		},
	}
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		arrange []domain.SessionResult
		assert  func(t *testing.T, s *leaderboard.Service)
	}{
		"should rank by descending score": {
			arrange: []domain.SessionResult{
				result("a", 50, domain.DifficultyBeginner),
				result("b", 120, domain.DifficultyBeginner),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				l := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyBeginner})
				require.Equal(t, []string{"b", "a"}, names(l.Entries))
				require.Equal(t, 120, l.Entries[0].Score)
				require.Equal(t, 50, l.Entries[1].Score)
			},
		},

		"should keep only the top 5 of a difficulty": {
			arrange: []domain.SessionResult{
				result("s10", 10, domain.DifficultyElite),
				result("s60", 60, domain.DifficultyElite),
				result("s30", 30, domain.DifficultyElite),
				result("s50", 50, domain.DifficultyElite),
				result("s20", 20, domain.DifficultyElite),
				result("s40", 40, domain.DifficultyElite),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				l := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyElite})
				require.Equal(t, []string{"s60", "s50", "s40", "s30", "s20"}, names(l.Entries))
				require.Len(t, s.ListResults(ctx), 5)
			},
		},

		"should not touch other difficulties": {
			arrange: []domain.SessionResult{
				result("b1", 5, domain.DifficultyBeginner),
				result("b2", 7, domain.DifficultyBeginner),
				result("e1", 100, domain.DifficultyElite),
				result("e2", 200, domain.DifficultyElite),
				result("e3", 300, domain.DifficultyElite),
				result("e4", 400, domain.DifficultyElite),
				result("e5", 500, domain.DifficultyElite),
				result("e6", 600, domain.DifficultyElite),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				l := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyBeginner})
				require.Equal(t, []string{"b2", "b1"}, names(l.Entries))

				// Beginner was re-saved ranked when b2 came in; elite records leave it alone.
				all := s.ListResults(ctx)
				require.Equal(t, []string{"b2", "b1", "e6", "e5", "e4", "e3", "e2"}, names(all))
			},
		},

		"should rank the earlier result first on equal scores": {
			arrange: []domain.SessionResult{
				result("first", 40, domain.DifficultyAdvanced),
				result("high", 90, domain.DifficultyAdvanced),
				result("second", 40, domain.DifficultyAdvanced),
				result("third", 40, domain.DifficultyAdvanced),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				l := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyAdvanced})
				require.Equal(t, []string{"high", "first", "second", "third"}, names(l.Entries))
			},
		},

		"should return an empty leaderboard for a difficulty without results": {
			arrange: []domain.SessionResult{
				result("a", 50, domain.DifficultyBeginner),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				l := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyIntermediate})
				require.NotNil(t, l.Entries)
				require.Empty(t, l.Entries)
			},
		},

		"clear should erase everything": {
			arrange: []domain.SessionResult{
				result("a", 50, domain.DifficultyBeginner),
				result("b", 50, domain.DifficultyElite),
			},
			assert: func(t *testing.T, s *leaderboard.Service) {
				require.NoError(t, s.Clear(ctx))
				require.Empty(t, s.ListResults(ctx))
				require.Empty(t, s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyBeginner}).Entries)
			},
		},
	}

	for storageName, newStorage := range storages(t) {
		for name, tt := range tests {
			t.Run(storageName+"/"+name, func(t *testing.T) {
				t.Parallel()

				s := leaderboard.NewService(leaderboard.Config{
					Storage: newStorage(t),
				})
				for _, r := range tt.arrange {
					require.NoError(t, s.Record(ctx, r))
				}

				tt.assert(t, s)
			})
		}
	}
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	ctx := context.Background()
	eb := event.NewBus()

	var published []domain.EventLeaderboardUpdated
	event.On(eb, func(_ context.Context, e domain.EventLeaderboardUpdated) error {
		published = append(published, e)
		return nil
	})

	s := leaderboard.NewService(leaderboard.Config{EventBus: eb})
	require.NoError(t, s.Record(ctx, result("a", 10, domain.DifficultyElite)))
	require.NoError(t, s.Record(ctx, result("b", 20, domain.DifficultyElite)))

	require.Len(t, published, 2)
	require.Equal(t, domain.DifficultyElite, published[1].Leaderboard.Difficulty)
	require.Equal(t, []string{"b", "a"}, names(published[1].Leaderboard.Entries))
}

func TestService_CorruptDataIsEmpty(t *testing.T) {
	ctx := context.Background()

	tests := map[string]string{
		"not json":           "{{{",
		"not a list":         `{"name":"x"}`,
		"unknown difficulty": `[{"name":"x","score":1,"difficulty":"impossible"}]`,
		"null":               `null`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			st := leaderboard.NewMemoryStorage()
			require.NoError(t, st.Save(ctx, []byte(data)))

			s := leaderboard.NewService(leaderboard.Config{Storage: st})
			require.Empty(t, s.ListResults(ctx))
			require.Empty(t, s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyElite}).Entries)

			require.NoError(t, s.Record(ctx, result("fresh", 10, domain.DifficultyElite)))
			require.Equal(t, []string{"fresh"}, names(s.ListResults(ctx)))
		})
	}
}

func TestService_StorageDownIsEmpty(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { rc.Close() })

	s := leaderboard.NewService(leaderboard.Config{Storage: leaderboard.NewRedisStorage(rc, "k")})
	require.NoError(t, s.Record(ctx, result("a", 10, domain.DifficultyElite)))

	mr.Close()

	require.Empty(t, s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: domain.DifficultyElite}).Entries)
	require.Error(t, s.Record(ctx, result("b", 10, domain.DifficultyElite)))
}

func TestService_PersistedLayout(t *testing.T) {
	ctx := context.Background()

	rc := makeRedis(t)
	s := leaderboard.NewService(leaderboard.Config{Storage: leaderboard.NewRedisStorage(rc, "")})
	require.NoError(t, s.Record(ctx, result("a", 10, domain.DifficultyElite)))

	raw, err := rc.Get(ctx, leaderboard.DefaultKey).Result()
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"a","score":10,"accuracy":87.5,"reaction":420,"difficulty":"elite","date":"2024-01-01T12:00:00Z"}]`, raw)
}

func TestService_TopResultsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		s := leaderboard.NewService(leaderboard.Config{})

		var recorded []domain.SessionResult
		n := rapid.IntRange(0, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			r := domain.SessionResult{
				PlayerName: string(rune('a' + i)),
				Score:      rapid.IntRange(0, 5).Draw(t, "score") * 10,
				Difficulty: domain.Difficulty(rapid.IntRange(0, 3).Draw(t, "difficulty")),
			}
			recorded = append(recorded, r)
			if err := s.Record(ctx, r); err != nil {
				t.Fatal(err)
			}
		}

		for _, d := range domain.Difficulties() {
			var want []domain.SessionResult
			for _, r := range recorded {
				if r.Difficulty == d {
					want = append(want, r)
				}
			}
			slices.SortStableFunc(want, func(a, b domain.SessionResult) int { return b.Score - a.Score })
			if len(want) > leaderboard.DefaultLimit {
				want = want[:leaderboard.DefaultLimit]
			}

			got := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: d}).Entries
			if !slices.Equal(names(want), names(got)) {
				t.Fatalf("%s: got %v, want %v", d, names(got), names(want))
			}
		}
	})
}

func makeRedis(t *testing.T) redis.UniversalClient {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return rc
}
