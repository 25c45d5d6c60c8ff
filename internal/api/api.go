package api

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/errors"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/leaderboard"
	"github.com/LeadstarlingX/Aim-Trainer/internal/session"
)

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Session     *session.Coordinator
	Leaderboard *leaderboard.Service
	// Redis is optional. Without it nothing is published to pub/sub.
	Redis        Redis
	PubsubPrefix string
	// DefaultDifficulty is used when a start request names no difficulty.
	DefaultDifficulty domain.Difficulty
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	eb *event.Bus
	ss *session.Coordinator
	ls *leaderboard.Service

	redis  Redis
	prefix string

	defaultDifficulty domain.Difficulty
}

func New(c Config) *API {
	a := &API{
		eb:                c.EventBus,
		ss:                c.Session,
		ls:                c.Leaderboard,
		redis:             c.Redis,
		prefix:            c.PubsubPrefix,
		defaultDifficulty: c.DefaultDifficulty,
	}

	v1 := c.Router.Group("/v1")
	v1.GET("/session", a.GetSession)
	v1.POST("/session/start", a.StartSession)
	v1.POST("/session/click", a.Click)
	v1.POST("/session/miss", a.Miss)
	v1.POST("/session/pause", a.transition(a.ss.Pause))
	v1.POST("/session/resume", a.transition(a.ss.Resume))
	v1.POST("/session/ack", a.transition(a.ss.Acknowledge))
	v1.POST("/session/end", a.transition(a.ss.End))
	v1.GET("/leaderboard", a.GetLeaderboard)
	v1.DELETE("/leaderboard", a.ClearLeaderboard)
	v1.GET("/ws", a.Stream)

	// Event handlers
	if a.redis != nil {
		event.On(c.EventBus, a.PublishLeaderboardUpdated)
		event.On(c.EventBus, a.PublishSessionEnded)
	}

	return a
}

type StartSessionRequest struct {
	Player     string `json:"player"`
	Difficulty string `json:"difficulty"`
	// DurationSeconds wins over Minutes when both are set.
	DurationSeconds int     `json:"durationSeconds"`
	Minutes         float64 `json:"minutes"`
}

func (a *API) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidBody(err))
		return
	}

	d := a.defaultDifficulty
	if req.Difficulty != "" {
		parsed, ok := domain.ParseDifficulty(req.Difficulty)
		if ok {
			d = parsed
		} else {
			slog.WarnContext(c, "api: unknown difficulty, using default",
				"difficulty", req.Difficulty,
				"default", d,
			)
		}
	}

	duration := req.DurationSeconds
	if duration == 0 && req.Minutes > 0 {
		duration = max(1, int(math.Round(req.Minutes*60)))
	}
	if duration < 0 || req.Minutes < 0 {
		writeError(c, errors.InvalidArgument("duration must be positive"))
		return
	}

	ok := a.ss.Start(c, session.StartRequest{
		Player:          req.Player,
		Difficulty:      d,
		DurationSeconds: duration,
	})
	if !ok {
		st := a.ss.State()
		writeError(c, errors.FailedPrecondition(st, "cannot start a session while %s", st))
		return
	}

	c.JSON(http.StatusOK, a.ss.Snapshot())
}

func (a *API) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, a.ss.Snapshot())
}

type ClickRequest struct {
	TargetID *uint64 `json:"targetId" binding:"required"`
}

type ClickResponse struct {
	Accepted bool         `json:"accepted"`
	Stats    domain.Stats `json:"stats"`
}

// Click reports accepted=false for a target that is already gone, which is
// the normal outcome of losing the race against its expiration.
func (a *API) Click(c *gin.Context) {
	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidBody(err))
		return
	}

	ok := a.ss.Click(c, *req.TargetID)
	a.respondInput(c, ok)
}

type MissRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (a *API) Miss(c *gin.Context) {
	var req MissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidBody(err))
		return
	}

	ok := a.ss.ClickBackground(c, req.X, req.Y)
	a.respondInput(c, ok)
}

func (a *API) respondInput(c *gin.Context, ok bool) {
	snap := a.ss.Snapshot()
	if !ok && snap.State != domain.StatePlaying {
		writeError(c, errors.FailedPrecondition(snap.State, "input is ignored while %s", snap.State))
		return
	}

	c.JSON(http.StatusOK, ClickResponse{Accepted: ok, Stats: snap.Stats})
}

// transition wraps a state change of the coordinator. A rejected change is a
// failed precondition.
func (a *API) transition(f func(ctx context.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !f(c) {
			st := a.ss.State()
			writeError(c, errors.FailedPrecondition(st, "not allowed while %s", st))
			return
		}
		c.JSON(http.StatusOK, a.ss.Snapshot())
	}
}

// GetLeaderboard returns the top results of ?difficulty=, or every persisted
// result unranked when no difficulty is given.
func (a *API) GetLeaderboard(c *gin.Context) {
	name, ok := c.GetQuery("difficulty")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"entries": a.ls.ListResults(c)})
		return
	}

	d, ok := domain.ParseDifficulty(name)
	if !ok {
		writeError(c, errors.InvalidArgument("unknown difficulty %q", name))
		return
	}

	c.JSON(http.StatusOK, a.ls.GetLeaderboard(c, leaderboard.GetLeaderboardRequest{Difficulty: d}))
}

func (a *API) ClearLeaderboard(c *gin.Context) {
	if err := a.ls.Clear(c); err != nil {
		writeError(c, errors.Unavailable(err, "leaderboard storage"))
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.HTTPStatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(c, "api: request failed",
			"path", c.FullPath(),
			"error", e,
		)
	}
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
