package web

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzeit/internal/analyses"
	"analyzeit/internal/history"
	"analyzeit/internal/present"
	"analyzeit/internal/session"
	"analyzeit/internal/shared/server/middleware"
	"analyzeit/internal/shared/server/respond"
	"analyzeit/internal/viewer"
)

// cardList is the fragment re-rendered on every live snapshot.
type cardList struct {
	Cards        []present.Card
	Count        string
	Empty        bool
	EmptyMessage string
	// From is carried on detail links so the back link returns to the list.
	From         string
}

func (h *Handler) cardList(c *gin.Context, recs []analyses.Record, total int) cardList {
	return cardList{
		Cards:        h.Presenter.Cards(c.Request.Context(), recs),
		Count:        history.CountLine(len(recs), total),
		Empty:        len(recs) == 0,
		EmptyMessage: history.EmptyMessage,
	}
}

func (h *Handler) historyList(c *gin.Context, recs []analyses.Record, total int) cardList {
	list := h.cardList(c, recs, total)
	list.From = "history"
	return list
}

// renderFragment executes a named fragment for the live stream.
func (h *Handler) renderFragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

type historyPage struct {
	chrome
	Criteria        history.Criteria
	StatusOptions   []history.Option
	DecisionOptions []history.Option
	SortOptions     []history.Option
	SortLabel       string
	Filtered        bool
	List            cardList
	StreamURL       string
}

func (h *Handler) history(c *gin.Context) {
	s, _ := session.FromContext(c)
	criteria := history.Parse(c.Request.URL.Query())

	recs, err := h.Records.List(c.Request.Context(), analyses.Query{UserID: s.UID})
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Não foi possível carregar o histórico de análises.", err)
		return
	}
	shown := history.Apply(recs, criteria)

	page := historyPage{
		chrome:          newChrome(c, "Histórico de Análises"),
		Criteria:        criteria,
		StatusOptions:   history.StatusOptions,
		DecisionOptions: history.DecisionOptions,
		SortOptions:     history.SortOptions,
		SortLabel:       criteria.SortLabel(),
		Filtered:        criteria.Active(),
		List:            h.historyList(c, shown, len(recs)),
		StreamURL:       "/dashboard/history/stream?" + criteria.Query().Encode(),
	}
	respond.HTML(c, http.StatusOK, h.tmpl, "history.html", page)
}

type viewerControl struct {
	Action string
	Label  string
	Href   string
}

type analysisPage struct {
	chrome
	Card      present.Card
	Viewer    viewer.State
	Transform template.CSS
	Zoom      int
	Controls  []viewerControl
	Back      string
}

var viewerActions = []struct{ action, label string }{
	{"zoom_out", "Diminuir zoom"},
	{"zoom_in", "Aumentar zoom"},
	{"rotate", "Girar"},
	{"reset", "Redefinir"},
	{"fullscreen", "Tela cheia"},
}

func (h *Handler) analysis(c *gin.Context) {
	s, _ := session.FromContext(c)
	c.Set(middleware.AnalysisIDKey, c.Param("id"))
	rec, err := h.Records.Get(c.Request.Context(), s.UID, c.Param("id"))
	if errors.Is(err, analyses.ErrNotFound) {
		h.renderError(c, http.StatusNotFound, "Análise não encontrada.", nil)
		return
	}
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Não foi possível carregar a análise.", err)
		return
	}

	state := viewer.Parse(c.Request.URL.Query())
	if action := c.Query("action"); action != "" {
		state.Apply(action)
	}
	back, from := "/dashboard", ""
	if c.Query("from") == "history" {
		back, from = "/dashboard/history", "&from=history"
	}
	controls := make([]viewerControl, 0, len(viewerActions))
	for _, a := range viewerActions {
		controls = append(controls, viewerControl{
			Action: a.action,
			Label:  a.label,
			Href:   c.Request.URL.Path + "?" + state.Link(a.action) + from,
		})
	}

	respond.HTML(c, http.StatusOK, h.tmpl, "analysis.html", analysisPage{
		chrome:    newChrome(c, "Detalhes da Análise"),
		Card:      h.Presenter.Card(c.Request.Context(), rec),
		Viewer:    state,
		Transform: template.CSS(state.Transform()),
		Zoom:      state.ZoomPercent(),
		Controls:  controls,
		Back:      back,
	})
}
