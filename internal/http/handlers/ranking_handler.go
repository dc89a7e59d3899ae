// README: Job board handlers; ranks open appointments for a cleaner, over HTTP or a websocket.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/location"
	"tidyhome/internal/types"
)

type RankingService interface {
	RankOpen(ctx context.Context, origin *types.Point, mode location.SortMode) ([]location.RankedAppointment, error)
	RankAppointments(ctx context.Context, appts []*appointment.Appointment, origin *types.Point, mode location.SortMode) ([]location.RankedAppointment, error)
	Watch(ctx context.Context, positions <-chan types.Point, mode location.SortMode, fn func([]location.RankedAppointment, error)) *location.Subscription
}

type CleanerSchedule interface {
	ListForCleaner(ctx context.Context, cleanerID types.ID) ([]*appointment.Appointment, error)
}

type RankingHandler struct {
	ranking  RankingService
	schedule CleanerSchedule
	log      *slog.Logger
}

func NewRankingHandler(ranking RankingService, schedule CleanerSchedule, log *slog.Logger) *RankingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RankingHandler{ranking: ranking, schedule: schedule, log: log}
}

// watchFrame is what the server pushes after every position update.
type watchFrame struct {
	Jobs  []appointmentView `json:"jobs,omitempty"`
	Error string            `json:"error,omitempty"`
}

func sortMode(c *gin.Context) (location.SortMode, bool) {
	mode, err := location.ParseSortMode(c.Query("sort"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return mode, true
}

// OpenJobs lists OPEN appointments ranked for the caller's position.
func (h *RankingHandler) OpenJobs(c *gin.Context) {
	mode, ok := sortMode(c)
	if !ok {
		return
	}
	origin, ok := optionalPoint(c)
	if !ok {
		return
	}
	ranked, err := h.ranking.RankOpen(c.Request.Context(), origin, mode)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"jobs": rankedViews(ranked), "sort": mode})
}

// Schedule ranks the appointments a cleaner is already assigned to.
func (h *RankingHandler) Schedule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	mode, ok := sortMode(c)
	if !ok {
		return
	}
	origin, ok := optionalPoint(c)
	if !ok {
		return
	}
	mine, err := h.schedule.ListForCleaner(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ranked, err := h.ranking.RankAppointments(c.Request.Context(), mine, origin, mode)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"jobs": rankedViews(ranked), "sort": mode})
}

// Watch upgrades to a websocket. The client sends {"lat":..,"lng":..} frames
// and receives the re-ranked job board after each one.
func (h *RankingHandler) Watch(c *gin.Context) {
	mode, ok := sortMode(c)
	if !ok {
		return
	}
	conn, err := ws.Accept(c.Writer, c.Request, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	positions := make(chan types.Point, 1)
	sub := h.ranking.Watch(ctx, positions, mode, func(ranked []location.RankedAppointment, err error) {
		frame := watchFrame{Jobs: rankedViews(ranked)}
		if err != nil {
			frame = watchFrame{Error: err.Error()}
		}
		wctx, wcancel := context.WithTimeout(ctx, 10*time.Second)
		defer wcancel()
		if err := wsjson.Write(wctx, conn, frame); err != nil {
			cancel()
		}
	})
	defer sub.Unsubscribe()

	for {
		var p types.Point
		if err := wsjson.Read(ctx, conn, &p); err != nil {
			if ws.CloseStatus(err) != ws.StatusNormalClosure && ctx.Err() == nil {
				h.log.Debug("websocket read ended", "err", err)
			}
			close(positions)
			return
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			continue
		}
		// Only the latest position matters; drop a stale pending one.
		select {
		case positions <- p:
		default:
			select {
			case <-positions:
			default:
			}
			select {
			case positions <- p:
			case <-ctx.Done():
				return
			}
		}
	}
}
