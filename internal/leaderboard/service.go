package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
)

const (
	DefaultKey   = "aimTrainer_scores"
	DefaultLimit = 5
)

// Storage holds the whole persisted collection as one blob under one key.
type Storage interface {
	// Load returns nil data and no error when nothing is stored.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

type Config struct {
	EventBus *event.Bus
	Storage  Storage
	// Limit is how many results are kept per difficulty.
	Limit int
}

type Service struct {
	eb      *event.Bus
	storage Storage
	limit   int

	// mu makes each Record a single read-modify-write.
	mu sync.Mutex
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		storage: c.Storage,
		limit:   c.Limit,
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	if s.storage == nil {
		s.storage = NewMemoryStorage()
	}
	return s
}

// Record appends r, then keeps only the top results of r's difficulty. Other
// difficulties are written back untouched.
func (s *Service) Record(ctx context.Context, r domain.SessionResult) error {
	top, err := s.record(ctx, r)
	if err != nil {
		return err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
			Leaderboard: domain.Leaderboard{Difficulty: r.Difficulty, Entries: top},
		})
	}
	return nil
}

func (s *Service) record(ctx context.Context, r domain.SessionResult) ([]domain.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("record result: %w", err)
	}

	all = append(all, r)
	top := s.rank(all, r.Difficulty)

	kept := make([]domain.SessionResult, 0, len(all))
	for _, res := range all {
		if res.Difficulty != r.Difficulty {
			kept = append(kept, res)
		}
	}
	kept = append(kept, top...)

	b, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	if err := s.storage.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}

	return top, nil
}

type GetLeaderboardRequest struct {
	Difficulty domain.Difficulty
}

// GetLeaderboard returns the top results of one difficulty, best first. A
// storage that cannot be read yields an empty leaderboard.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) *domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: load failed, serving empty leaderboard",
			"difficulty", req.Difficulty,
			"error", err,
		)
		all = nil
	}

	return &domain.Leaderboard{
		Difficulty: req.Difficulty,
		Entries:    s.rank(all, req.Difficulty),
	}
}

// ListResults returns the whole persisted collection, unranked.
func (s *Service) ListResults(ctx context.Context) []domain.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: load failed, serving empty results", "error", err)
		return []domain.SessionResult{}
	}
	return all
}

// Clear erases every persisted result.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}

// rank returns the top results of d by descending score. On equal scores the
// result stored earlier ranks first.
func (s *Service) rank(all []domain.SessionResult, d domain.Difficulty) []domain.SessionResult {
	tier := make([]domain.SessionResult, 0, len(all))
	for _, r := range all {
		if r.Difficulty == d {
			tier = append(tier, r)
		}
	}

	slices.SortStableFunc(tier, func(a, b domain.SessionResult) int {
		return b.Score - a.Score
	})

	if len(tier) > s.limit {
		tier = tier[:s.limit]
	}
	return tier
}

// load reads the persisted collection. Missing or malformed data is an empty
// collection; only a failing storage is an error.
func (s *Service) load(ctx context.Context) ([]domain.SessionResult, error) {
	b, err := s.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return []domain.SessionResult{}, nil
	}

	var all []domain.SessionResult
	if err := json.Unmarshal(b, &all); err != nil {
		slog.WarnContext(ctx, "leaderboard: discarding malformed results", "error", err)
		return []domain.SessionResult{}, nil
	}
	if all == nil {
		all = []domain.SessionResult{}
	}
	return all, nil
}
