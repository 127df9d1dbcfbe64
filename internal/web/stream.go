package web

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/analyses"
	"analyzeit/internal/history"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/shared/telemetry"
)

// snapshotEvent is the payload of a "snapshot" server-sent event.
type snapshotEvent struct {
	HTML  template.HTML `json:"html"`
	Count string        `json:"count"`
	Empty bool          `json:"empty"`
}

type renderFunc func(recs []analyses.Record) (snapshotEvent, error)

func (h *Handler) historyStream(c *gin.Context) {
	s, _ := session.FromContext(c)
	criteria := history.Parse(c.Request.URL.Query())
	h.stream(c, analyses.Query{UserID: s.UID}, func(recs []analyses.Record) (snapshotEvent, error) {
		list := h.historyList(c, history.Apply(recs, criteria), len(recs))
		html, err := h.renderFragment("cards", list)
		return snapshotEvent{HTML: html, Count: list.Count, Empty: list.Empty}, err
	})
}

func (h *Handler) recentStream(c *gin.Context) {
	s, _ := session.FromContext(c)
	h.stream(c, analyses.Query{UserID: s.UID, Limit: RecentLimit}, func(recs []analyses.Record) (snapshotEvent, error) {
		list := h.cardList(c, recs, len(recs))
		html, err := h.renderFragment("recent_cards", list)
		return snapshotEvent{HTML: html, Count: list.Count, Empty: list.Empty}, err
	})
}

// stream relays live-query snapshots as server-sent events until the client
// goes away. The subscription is bound to the request context, so it never
// outlives the session that opened it.
func (h *Handler) stream(c *gin.Context, q analyses.Query, render renderFunc) {
	ctx := c.Request.Context()
	sub, err := h.Live.Subscribe(ctx, q)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "stream_unavailable", "live query failed", nil)
		return
	}
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ping := time.NewTicker(h.KeepAlive)
	defer ping.Stop()

	fields := map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"user_id":    q.UserID,
		"path":       c.Request.URL.Path,
	}
	telemetry.Debug("stream.opened", fields)

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return false
			}
			if snap.Err != nil {
				c.SSEvent("error", `{"message":"Não foi possível atualizar as análises."}`)
				return true
			}
			ev, err := render(snap.Records)
			if err != nil {
				telemetry.Error("stream.render_failed", withField(fields, "error", err))
				return true
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				telemetry.Error("stream.encode_failed", withField(fields, "error", err))
				return true
			}
			c.SSEvent("snapshot", string(payload))
			return true
		case <-ping.C:
			c.SSEvent("ping", `{"status":"alive","timestamp":"`+time.Now().UTC().Format(time.RFC3339)+`"}`)
			return true
		case <-ctx.Done():
			return false
		}
	})
	telemetry.Debug("stream.closed", fields)
}

func withField(fields map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}
