package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
)

const (
	streamBuffer       = 256
	streamWriteTimeout = 5 * time.Second
)

// streamed are the events forwarded to websocket clients. Spawn requests are
// internal to the engine and are left out.
var streamed = []event.Name{
	domain.EventNameStateChanged,
	domain.EventNameTimerTicked,
	domain.EventNameTimerEnded,
	domain.EventNameTargetSpawned,
	domain.EventNameTargetRemoved,
	domain.EventNameBackgroundClicked,
	domain.EventNameStatsUpdated,
	domain.EventNameFeedbackShown,
	domain.EventNameSessionEnded,
	domain.EventNameLeaderboardUpdated,
}

// Stream upgrades to a websocket and writes every engine event as a
// Notification. Events are published on the engine loop, so a client that
// cannot keep up loses events rather than stalling the loop.
func (a *API) Stream(c *gin.Context) {
	ch := make(chan Notification, streamBuffer)

	// Subscribe before the upgrade so no event after the handshake is missed.
	unsubscribe := a.subscribe(ch)
	defer unsubscribe()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.ErrorContext(c, "api: websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// The client never sends anything; CloseRead cancels ctx once it goes away.
	ctx := conn.CloseRead(c.Request.Context())
	slog.DebugContext(ctx, "api: websocket connected", "remote", c.Request.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "api: websocket disconnected", "remote", c.Request.RemoteAddr)
			return
		case n := <-ch:
			if err := a.write(ctx, conn, n); err != nil {
				slog.WarnContext(ctx, "api: websocket write failed", "error", err)
				return
			}
		}
	}
}

func (a *API) write(ctx context.Context, conn *websocket.Conn, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, n)
}

func (a *API) subscribe(ch chan<- Notification) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(streamed))
	for _, name := range streamed {
		unsubs = append(unsubs, a.eb.Subscribe(name, func(ctx context.Context, e event.Event) error {
			select {
			case ch <- Notification{Event: string(e.Name()), Data: e}:
			default:
				slog.WarnContext(ctx, "api: websocket client too slow, dropping event", "event", e.Name())
			}
			return nil
		}))
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
