package history

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"analyzeit/internal/analyses"
)

// All disables the status or decision predicate.
const All = "all"

// Sort options.
const (
	SortNewest      = "newest"
	SortOldest      = "oldest"
	SortHighestProb = "highest_prob"
	SortLowestProb  = "lowest_prob"
)

// Option is a select entry in the filter bar.
type Option struct {
	Value string
	Label string
}

var (
	StatusOptions = []Option{
		{All, "Todos"},
		{analyses.StatusSuccess, "Concluído"},
		{analyses.StatusFailed, "Falhou"},
		{analyses.StatusPending, "Analisando"},
	}
	DecisionOptions = []Option{
		{All, "Todas"},
		{analyses.DecisionCompression, "Compressão"},
		{analyses.DecisionNormal, "Normal"},
		{analyses.DecisionUndefined, "Indefinido"},
	}
	SortOptions = []Option{
		{SortNewest, "Mais recentes"},
		{SortOldest, "Mais antigas"},
		{SortHighestProb, "Maior probabilidade"},
		{SortLowestProb, "Menor probabilidade"},
	}
)

// Criteria are the history filters and sort order.
type Criteria struct {
	Search   string
	Status   string
	Decision string
	Sort     string
}

// Default is the unfiltered, newest-first view.
func Default() Criteria {
	return Criteria{Status: All, Decision: All, Sort: SortNewest}
}

// Clear resets every filter.
func (Criteria) Clear() Criteria { return Default() }

// Active reports whether any filter or the sort differs from the default.
func (c Criteria) Active() bool {
	return c.normalized() != Default()
}

// Parse reads criteria from query parameters q, status, decision and sort.
func Parse(v url.Values) Criteria {
	c := Criteria{
		Search:   strings.TrimSpace(v.Get("q")),
		Status:   v.Get("status"),
		Decision: v.Get("decision"),
		Sort:     v.Get("sort"),
	}
	return c.normalized()
}

// Query encodes the criteria back into query parameters.
func (c Criteria) Query() url.Values {
	c = c.normalized()
	v := url.Values{}
	if c.Search != "" {
		v.Set("q", c.Search)
	}
	if c.Status != All {
		v.Set("status", c.Status)
	}
	if c.Decision != All {
		v.Set("decision", c.Decision)
	}
	if c.Sort != SortNewest {
		v.Set("sort", c.Sort)
	}
	return v
}

func (c Criteria) normalized() Criteria {
	if c.Status == "" {
		c.Status = All
	}
	if c.Decision == "" {
		c.Decision = All
	}
	if labelOf(SortOptions, c.Sort) == "" {
		c.Sort = SortNewest
	}
	return c
}

// SortLabel is the "Ordenado por" caption for the current sort.
func (c Criteria) SortLabel() string {
	return "Ordenado por " + strings.ToLower(labelOf(SortOptions, c.normalized().Sort))
}

// Apply filters and sorts records without modifying the input.
func Apply(records []analyses.Record, c Criteria) []analyses.Record {
	c = c.normalized()
	search := strings.ToLower(c.Search)

	out := make([]analyses.Record, 0, len(records))
	for _, rec := range records {
		if search != "" && !strings.Contains(strings.ToLower(rec.ID), search) {
			continue
		}
		if c.Status != All && rec.Status != c.Status {
			continue
		}
		if c.Decision != All && rec.Decision != c.Decision {
			continue
		}
		out = append(out, rec)
	}

	var less func(a, b analyses.Record) bool
	switch c.Sort {
	case SortOldest:
		less = func(a, b analyses.Record) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortHighestProb:
		less = func(a, b analyses.Record) bool { return prob(a) > prob(b) }
	case SortLowestProb:
		less = func(a, b analyses.Record) bool { return prob(a) < prob(b) }
	default:
		less = func(a, b analyses.Record) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func prob(r analyses.Record) float64 {
	if r.Probability == nil {
		return 0
	}
	return *r.Probability
}

func labelOf(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return ""
}

// EmptyMessage is shown when no record passes the filters.
const EmptyMessage = "Nenhuma análise encontrada com os filtros selecionados."

// CountLine is the "Mostrando X de Y análises" caption.
func CountLine(shown, total int) string {
	return "Mostrando " + strconv.Itoa(shown) + " de " + strconv.Itoa(total) + " análises"
}
